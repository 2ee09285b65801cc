package loan

import "github.com/creditoya/backend/internal/validate"

type Scorer interface {
	Score(monthlyIncome, principal int64, termMonths int) int
}

type DecisionPolicy struct {
	ApprovalThreshold int
}

func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{ApprovalThreshold: 60}
}

type Decision struct {
	Status  Status `json:"status"`
	Scoring *int   `json:"scoring"`
}

// Decide scores every application, treating a missing income as zero, and
// approves it when the score reaches the policy threshold.
func Decide(app Entity, scorer Scorer, policy DecisionPolicy) Decision {
	var income int64
	if app.Income != nil {
		income = *app.Income
	}
	score := scorer.Score(income, app.Amount, app.TermMonths)
	status := StatusRejected
	if score >= policy.ApprovalThreshold {
		status = StatusApproved
	}
	return Decision{Status: status, Scoring: &score}
}

// ApplyPayment computes the effect of a payment on a loan without mutating
// it. Overpayments are capped so the balance never drops below zero.
func ApplyPayment(l Entity, amount int64) (newBalance, applied int64, err error) {
	if amount <= 0 {
		return l.RemainingBalance, 0, validate.Field("amount", "must be greater than zero")
	}
	if !l.Status.Payable() {
		return l.RemainingBalance, 0, ErrNotPayable
	}
	if l.RemainingBalance <= 0 {
		return l.RemainingBalance, 0, ErrAlreadyPaid
	}
	newBalance = l.RemainingBalance - amount
	if newBalance < 0 {
		newBalance = 0
	}
	return newBalance, l.RemainingBalance - newBalance, nil
}

// CanSign guards the approved -> signed transition.
func CanSign(l Entity) error {
	if l.Status != StatusApproved {
		return ErrNotApproved
	}
	return nil
}
