package memory

import (
	"context"
	"testing"

	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decideAs(status loan.Status, score int) loan.DecideFunc {
	return func(loan.Entity) loan.Decision {
		return loan.Decision{Status: status, Scoring: &score}
	}
}

func approved(t *testing.T, r *LoanRepository, rut string, amount int64) *loan.Entity {
	t.Helper()
	in := loan.CreateInput{RUT: rut, FullName: "Ana Pérez", Email: "ana@example.cl", Amount: amount, TermMonths: 12}
	l, err := r.CreateDecided(context.Background(), in, decideAs(loan.StatusApproved, 80))
	require.NoError(t, err)
	return l
}

func TestCreateDecidedSeesPendingApplication(t *testing.T) {
	r := NewLoanRepository()
	income := int64(500_000)
	var seen loan.Entity
	l, err := r.CreateDecided(context.Background(),
		loan.CreateInput{RUT: "1", Amount: 750_000, TermMonths: 12, Income: &income},
		func(pending loan.Entity) loan.Decision {
			seen = pending
			return decideAs(loan.StatusRejected, 40)(pending)
		})
	require.NoError(t, err)
	assert.Equal(t, loan.StatusPending, seen.Status)
	assert.Nil(t, seen.Scoring)
	assert.Equal(t, int64(750_000), seen.RemainingBalance)

	assert.Equal(t, loan.StatusRejected, l.Status)
	require.NotNil(t, l.Scoring)
	assert.Equal(t, 40, *l.Scoring)
	assert.Equal(t, int64(750_000), l.RemainingBalance)

	// returned copies are detached from the stored record
	*l.Income = 1
	again, err := r.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), *again.Income)
}

func TestCreateDecidedStoresNothingOnBadDecision(t *testing.T) {
	r := NewLoanRepository()
	ctx := context.Background()

	_, err := r.CreateDecided(ctx, loan.CreateInput{RUT: "11", Amount: 1000, TermMonths: 12}, decideAs("bogus", 50))
	require.Error(t, err)

	got, err := r.ListByRUT(ctx, "11")
	require.NoError(t, err)
	assert.Empty(t, got)

	// the failed attempt does not consume an id
	l := approved(t, r, "11", 1000)
	assert.Equal(t, int64(1), l.ID)
}

func TestListByRUTNewestFirst(t *testing.T) {
	r := NewLoanRepository()
	a := approved(t, r, "11", 1000)
	b := approved(t, r, "11", 2000)
	approved(t, r, "22", 3000)

	got, err := r.ListByRUT(context.Background(), "11")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestRecordPaymentAndEventsFeed(t *testing.T) {
	r := NewLoanRepository()
	ctx := context.Background()
	l := approved(t, r, "11", 1000)
	other := approved(t, r, "22", 1000)

	_, err := r.RecordPayment(ctx, l.ID, 400, "transferencia")
	require.NoError(t, err)
	_, err = r.RecordPayment(ctx, other.ID, 100, "")
	require.NoError(t, err)
	res, err := r.RecordPayment(ctx, l.ID, 900, "")
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Payment.AppliedAmount)
	assert.Equal(t, int64(0), res.Loan.RemainingBalance)

	events, err := r.ListPaymentEventsSince(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "11", events[0].RUT)
	assert.Equal(t, int64(600), events[0].BalanceAfter)
	assert.Equal(t, "22", events[1].RUT)

	tail, err := r.ListPaymentEventsSince(ctx, events[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(0), tail[0].BalanceAfter)

	limited, err := r.ListPaymentEventsSince(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	payments, err := r.ListPayments(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, []int64{600, 0}, []int64{payments[0].BalanceAfter, payments[1].BalanceAfter})

	latest, err := r.LatestPaymentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, events[2].ID, latest)

	_, err = r.ListPayments(ctx, 999)
	assert.ErrorIs(t, err, loan.ErrNotFound)
}

func TestSignTransition(t *testing.T) {
	r := NewLoanRepository()
	ctx := context.Background()
	l := approved(t, r, "11", 1000)

	signed, err := r.Sign(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusSigned, signed.Status)

	_, err = r.Sign(ctx, l.ID)
	assert.ErrorIs(t, err, loan.ErrNotApproved)

	_, err = r.Sign(ctx, 999)
	assert.ErrorIs(t, err, loan.ErrNotFound)
}
