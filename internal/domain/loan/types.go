package loan

import (
	"context"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusInadmissible Status = "inadmissible"
	StatusRejected     Status = "rejected"
	StatusApproved     Status = "approved"
	StatusSigned       Status = "signed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInadmissible, StatusRejected, StatusApproved, StatusSigned:
		return st, nil
	default:
		return "", fmt.Errorf("invalid loan status: %q", s)
	}
}

// Payable reports whether payments may be recorded against a loan in this status.
func (s Status) Payable() bool {
	return s == StatusApproved || s == StatusSigned
}

type Entity struct {
	ID               int64     `json:"id"`
	RUT              string    `json:"rut"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	Amount           int64     `json:"amount"`
	TermMonths       int       `json:"term_months"`
	Income           *int64    `json:"income,omitempty"`
	Status           Status    `json:"status"`
	Scoring          *int      `json:"scoring"`
	RemainingBalance int64     `json:"remaining_balance"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (e Entity) PaidOff() bool {
	return e.Status.Payable() && e.RemainingBalance <= 0
}

type CreateInput struct {
	RUT        string
	FullName   string
	Email      string
	Phone      string
	Amount     int64
	TermMonths int
	Income     *int64
}

// Payment is an append-only ledger entry. Amount is what the borrower
// tendered; AppliedAmount is what actually reduced the balance, and
// BalanceAfter is the loan's remaining balance right after this entry.
type Payment struct {
	ID            int64     `json:"id"`
	LoanID        int64     `json:"loan_id"`
	Amount        int64     `json:"amount"`
	AppliedAmount int64     `json:"applied_amount"`
	BalanceAfter  int64     `json:"balance_after"`
	Method        string    `json:"method,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

type PaymentResult struct {
	Loan    *Entity  `json:"loan"`
	Payment *Payment `json:"payment"`
}

// PaymentEvent is a recorded payment joined with its loan's owner, used to
// fan payments out to connected borrowers.
type PaymentEvent struct {
	Payment
	RUT string
}

// DecideFunc assigns the decision for an application that is about to be
// stored as pending.
type DecideFunc func(pending Entity) Decision

type Repository interface {
	// CreateDecided stores the application together with its decision.
	// Either both are persisted or neither is.
	CreateDecided(ctx context.Context, in CreateInput, decide DecideFunc) (*Entity, error)
	GetByID(ctx context.Context, id int64) (*Entity, error)
	ListByRUT(ctx context.Context, rut string) ([]Entity, error)
	Sign(ctx context.Context, id int64) (*Entity, error)
	// RecordPayment must read the balance, apply ApplyPayment, append the
	// ledger entry and persist the new balance as one atomic unit per loan.
	RecordPayment(ctx context.Context, loanID, amount int64, method string) (*PaymentResult, error)
	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)
}
