// Package amortization implements constant-payment (French system) loan math.
package amortization

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

type RateTier struct {
	MaxTermMonths     int
	AnnualRatePercent float64
}

// RateTable maps a term length to the annual nominal rate offered for it.
// Tiers are matched in ascending MaxTermMonths order; terms beyond the last
// tier get DefaultRate.
type RateTable struct {
	Tiers       []RateTier
	DefaultRate float64
}

func DefaultRateTable() RateTable {
	return RateTable{
		Tiers: []RateTier{
			{MaxTermMonths: 12, AnnualRatePercent: 5.5},
			{MaxTermMonths: 36, AnnualRatePercent: 6.0},
		},
		DefaultRate: 7.5,
	}
}

func (t RateTable) RateForTerm(termMonths int) float64 {
	for _, tier := range t.Tiers {
		if termMonths <= tier.MaxTermMonths {
			return tier.AnnualRatePercent
		}
	}
	return t.DefaultRate
}

type Quote struct {
	Principal         int64           `json:"principal"`
	TermMonths        int             `json:"term_months"`
	AppliedAnnualRate float64         `json:"applied_annual_rate"`
	MonthlyPayment    decimal.Decimal `json:"monthly_payment"`
	TotalCost         decimal.Decimal `json:"total_cost"`
}

// Calculator is safe for concurrent use; its rate table is copied at
// construction and never mutated.
type Calculator struct {
	rates RateTable
}

func NewCalculator(rates RateTable) *Calculator {
	tiers := make([]RateTier, len(rates.Tiers))
	copy(tiers, rates.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MaxTermMonths < tiers[j].MaxTermMonths })
	return &Calculator{rates: RateTable{Tiers: tiers, DefaultRate: rates.DefaultRate}}
}

func (c *Calculator) MockAnnualRateForTerm(termMonths int) float64 {
	return c.rates.RateForTerm(termMonths)
}

func (c *Calculator) Quote(principal int64, termMonths int) Quote {
	rate := c.MockAnnualRateForTerm(termMonths)
	payment := MonthlyPayment(float64(principal), rate, termMonths)
	total := decimal.Zero
	if termMonths > 0 {
		total = payment.Mul(decimal.NewFromInt(int64(termMonths)))
	}
	return Quote{
		Principal:         principal,
		TermMonths:        termMonths,
		AppliedAnnualRate: rate,
		MonthlyPayment:    payment,
		TotalCost:         total,
	}
}

func MonthlyRateFromAnnual(annualRatePercent float64) float64 {
	return (annualRatePercent / 100) / 12
}

// MonthlyPayment returns the fixed installment for the loan, rounded to
// two decimal places. Non-positive inputs yield zero rather than an error.
func MonthlyPayment(principal, annualRatePercent float64, termMonths int) decimal.Decimal {
	if annualRatePercent <= 0 || termMonths <= 0 || principal <= 0 {
		return decimal.Zero
	}
	return InstallmentAtMonthlyRate(principal, MonthlyRateFromAnnual(annualRatePercent), termMonths)
}

// InstallmentAtMonthlyRate applies the French formula for an already derived
// monthly rate. A zero rate splits the principal evenly.
func InstallmentAtMonthlyRate(principal, monthlyRate float64, termMonths int) decimal.Decimal {
	if termMonths <= 0 || principal <= 0 || monthlyRate < 0 {
		return decimal.Zero
	}
	if monthlyRate == 0 {
		return roundMoney(principal / float64(termMonths))
	}
	payment := principal * monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(termMonths)))
	return roundMoney(payment)
}

func roundMoney(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}
