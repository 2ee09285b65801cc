package amortization

import (
	"time"

	"github.com/shopspring/decimal"
)

type Entry struct {
	Period           int             `json:"period"`
	DueDate          time.Time       `json:"due_date"`
	Installment      decimal.Decimal `json:"installment"`
	Interest         decimal.Decimal `json:"interest"`
	Principal        decimal.Decimal `json:"principal"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Schedule breaks a loan into its monthly installments. The first due date is
// one month after start. The last period absorbs rounding drift so the
// balance ends at exactly zero.
func Schedule(principal, annualRatePercent float64, termMonths int, start time.Time) []Entry {
	payment := MonthlyPayment(principal, annualRatePercent, termMonths)
	if payment.IsZero() {
		return nil
	}

	rate := decimal.NewFromFloat(MonthlyRateFromAnnual(annualRatePercent))
	remaining := decimal.NewFromFloat(principal).Round(2)
	out := make([]Entry, 0, termMonths)

	for period := 1; period <= termMonths; period++ {
		interest := remaining.Mul(rate).Round(2)
		principalPart := payment.Sub(interest)
		installment := payment
		if period == termMonths || principalPart.GreaterThan(remaining) {
			principalPart = remaining
			installment = principalPart.Add(interest)
		}
		remaining = remaining.Sub(principalPart)

		out = append(out, Entry{
			Period:           period,
			DueDate:          start.AddDate(0, period, 0),
			Installment:      installment,
			Interest:         interest,
			Principal:        principalPart,
			RemainingBalance: remaining,
		})
		if remaining.IsZero() {
			break
		}
	}
	return out
}
