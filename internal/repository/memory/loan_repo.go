package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/creditoya/backend/internal/domain/loan"
)

// LoanRepository keeps loans and their payment ledger in process memory.
// Writes to one loan are serialized by that loan's lock; different loans
// proceed independently.
type LoanRepository struct {
	mu       sync.RWMutex
	loans    map[int64]*loanRecord
	payments []loan.PaymentEvent
	nextLoan int64
	nextPay  int64
	now      func() time.Time
}

type loanRecord struct {
	mu     sync.Mutex
	entity loan.Entity
}

func NewLoanRepository() *LoanRepository {
	return &LoanRepository{
		loans: map[int64]*loanRecord{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateDecided holds the repository lock while the decision is made, so
// the loan only becomes visible once it is decided.
func (r *LoanRepository) CreateDecided(_ context.Context, in loan.CreateInput, decide loan.DecideFunc) (*loan.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	e := loan.Entity{
		ID:               r.nextLoan + 1,
		RUT:              in.RUT,
		FullName:         in.FullName,
		Email:            in.Email,
		Phone:            in.Phone,
		Amount:           in.Amount,
		TermMonths:       in.TermMonths,
		Income:           copyInt64(in.Income),
		Status:           loan.StatusPending,
		RemainingBalance: in.Amount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	d := decide(*cloneEntity(e))
	status, err := loan.ParseStatus(string(d.Status))
	if err != nil {
		return nil, err
	}
	e.Status = status
	e.Scoring = copyInt(d.Scoring)

	r.nextLoan = e.ID
	r.loans[e.ID] = &loanRecord{entity: e}
	return cloneEntity(e), nil
}

func (r *LoanRepository) record(id int64) (*loanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.loans[id]
	if !ok {
		return nil, loan.ErrNotFound
	}
	return rec, nil
}

func (r *LoanRepository) GetByID(_ context.Context, id int64) (*loan.Entity, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneEntity(rec.entity), nil
}

// ListByRUT returns the borrower's loans, newest first.
func (r *LoanRepository) ListByRUT(_ context.Context, rut string) ([]loan.Entity, error) {
	r.mu.RLock()
	recs := make([]*loanRecord, 0)
	for _, rec := range r.loans {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	out := make([]loan.Entity, 0)
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.entity.RUT == rut {
			out = append(out, *cloneEntity(rec.entity))
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *LoanRepository) Sign(_ context.Context, id int64) (*loan.Entity, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := loan.CanSign(rec.entity); err != nil {
		return nil, err
	}
	rec.entity.Status = loan.StatusSigned
	rec.entity.UpdatedAt = r.now()
	return cloneEntity(rec.entity), nil
}

func (r *LoanRepository) RecordPayment(_ context.Context, loanID, amount int64, method string) (*loan.PaymentResult, error) {
	rec, err := r.record(loanID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	newBalance, applied, err := loan.ApplyPayment(rec.entity, amount)
	if err != nil {
		return nil, err
	}
	now := r.now()
	rec.entity.RemainingBalance = newBalance
	rec.entity.UpdatedAt = now

	r.mu.Lock()
	r.nextPay++
	p := loan.Payment{
		ID:            r.nextPay,
		LoanID:        loanID,
		Amount:        amount,
		AppliedAmount: applied,
		BalanceAfter:  newBalance,
		Method:        method,
		PaidAt:        now,
	}
	r.payments = append(r.payments, loan.PaymentEvent{Payment: p, RUT: rec.entity.RUT})
	r.mu.Unlock()

	return &loan.PaymentResult{Loan: cloneEntity(rec.entity), Payment: &p}, nil
}

func (r *LoanRepository) ListPayments(_ context.Context, loanID int64) ([]loan.Payment, error) {
	if _, err := r.record(loanID); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]loan.Payment, 0)
	for _, ev := range r.payments {
		if ev.LoanID == loanID {
			out = append(out, ev.Payment)
		}
	}
	return out, nil
}

// LatestPaymentID is the id of the newest ledger entry, or 0 when there is none.
func (r *LoanRepository) LatestPaymentID(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextPay, nil
}

func (r *LoanRepository) ListPaymentEventsSince(_ context.Context, lastID int64, limit int32) ([]loan.PaymentEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]loan.PaymentEvent, 0)
	for _, ev := range r.payments {
		if ev.ID <= lastID {
			continue
		}
		out = append(out, ev)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func cloneEntity(e loan.Entity) *loan.Entity {
	e.Income = copyInt64(e.Income)
	e.Scoring = copyInt(e.Scoring)
	return &e
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
