package postgres

import (
	"context"

	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepository struct {
	pool *pgxpool.Pool
}

func NewEventsRepository(pool *pgxpool.Pool) *EventsRepository {
	return &EventsRepository{pool: pool}
}

// LatestPaymentID is the id of the newest ledger entry, or 0 when there is none.
func (r *EventsRepository) LatestPaymentID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM payments`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ListPaymentEventsSince returns payments with id > lastID joined with the
// owner of each loan, oldest first. Each event carries the balance recorded
// with that payment, not the loan's current balance.
func (r *EventsRepository) ListPaymentEventsSince(ctx context.Context, lastID int64, limit int32) ([]loan.PaymentEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT
  p.id, p.loan_id, p.amount, p.applied_amount, p.balance_after, COALESCE(p.method, ''), p.paid_at,
  l.rut
FROM payments p
JOIN loan_requests l ON l.id = p.loan_id
WHERE p.id > $1
ORDER BY p.id ASC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.PaymentEvent, 0)
	for rows.Next() {
		var ev loan.PaymentEvent
		if err := rows.Scan(&ev.ID, &ev.LoanID, &ev.Amount, &ev.AppliedAmount, &ev.BalanceAfter, &ev.Method, &ev.PaidAt, &ev.RUT); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
