package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `id, rut, full_name, email, COALESCE(phone, ''), amount, term_months, income,
       status, scoring, remaining_balance, created_at, updated_at`

func scanLoan(row pgx.Row) (*loan.Entity, error) {
	out := &loan.Entity{}
	var status string
	err := row.Scan(
		&out.ID, &out.RUT, &out.FullName, &out.Email, &out.Phone, &out.Amount, &out.TermMonths, &out.Income,
		&status, &out.Scoring, &out.RemainingBalance, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.ErrNotFound
		}
		return nil, err
	}
	out.Status, err = loan.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDecided inserts the pending application and writes its decision in
// one transaction; a failed decision rolls the insert back.
func (r *LoanRepository) CreateDecided(ctx context.Context, in loan.CreateInput, decide loan.DecideFunc) (*loan.Entity, error) {
	var out *loan.Entity
	err := db.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		q := `
INSERT INTO loan_requests (rut, full_name, email, phone, amount, term_months, income, status, remaining_balance)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, 'pending', $5)
RETURNING ` + loanColumns
		pending, err := scanLoan(tx.QueryRow(ctx, q, in.RUT, in.FullName, in.Email, in.Phone, in.Amount, in.TermMonths, in.Income))
		if err != nil {
			return fmt.Errorf("create loan: %w", err)
		}

		d := decide(*pending)
		status, err := loan.ParseStatus(string(d.Status))
		if err != nil {
			return err
		}
		q = `
UPDATE loan_requests
SET status = $2, scoring = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + loanColumns
		out, err = scanLoan(tx.QueryRow(ctx, q, pending.ID, string(status), d.Scoring))
		if err != nil {
			return fmt.Errorf("decide loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*loan.Entity, error) {
	q := `SELECT ` + loanColumns + ` FROM loan_requests WHERE id = $1`
	return scanLoan(r.pool.QueryRow(ctx, q, id))
}

func (r *LoanRepository) ListByRUT(ctx context.Context, rut string) ([]loan.Entity, error) {
	q := `SELECT ` + loanColumns + ` FROM loan_requests WHERE rut = $1 ORDER BY id DESC`
	rows, err := r.pool.Query(ctx, q, rut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Entity, 0)
	for rows.Next() {
		item, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func (r *LoanRepository) Sign(ctx context.Context, id int64) (*loan.Entity, error) {
	var out *loan.Entity
	err := db.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := lockLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := loan.CanSign(*current); err != nil {
			return err
		}
		q := `UPDATE loan_requests SET status = 'signed', updated_at = NOW() WHERE id = $1 RETURNING ` + loanColumns
		out, err = scanLoan(tx.QueryRow(ctx, q, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordPayment holds the loan row lock for the whole read, compute, append
// and update sequence, so concurrent payments on one loan serialize.
func (r *LoanRepository) RecordPayment(ctx context.Context, loanID, amount int64, method string) (*loan.PaymentResult, error) {
	res := &loan.PaymentResult{}
	err := db.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		newBalance, applied, err := loan.ApplyPayment(*current, amount)
		if err != nil {
			return err
		}

		p := &loan.Payment{}
		err = tx.QueryRow(ctx, `
INSERT INTO payments (loan_id, amount, applied_amount, balance_after, method)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
RETURNING id, loan_id, amount, applied_amount, balance_after, COALESCE(method, ''), paid_at`,
			loanID, amount, applied, newBalance, method,
		).Scan(&p.ID, &p.LoanID, &p.Amount, &p.AppliedAmount, &p.BalanceAfter, &p.Method, &p.PaidAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		q := `UPDATE loan_requests SET remaining_balance = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + loanColumns
		updated, err := scanLoan(tx.QueryRow(ctx, q, loanID, newBalance))
		if err != nil {
			return err
		}
		res.Loan = updated
		res.Payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func lockLoan(ctx context.Context, tx pgx.Tx, id int64) (*loan.Entity, error) {
	q := `SELECT ` + loanColumns + ` FROM loan_requests WHERE id = $1 FOR UPDATE`
	return scanLoan(tx.QueryRow(ctx, q, id))
}

func (r *LoanRepository) ListPayments(ctx context.Context, loanID int64) ([]loan.Payment, error) {
	q := `
SELECT id, loan_id, amount, applied_amount, balance_after, COALESCE(method, ''), paid_at
FROM payments
WHERE loan_id = $1
ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, q, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Payment, 0)
	for rows.Next() {
		var p loan.Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.AppliedAmount, &p.BalanceAfter, &p.Method, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
