// Package scoring turns an applicant's income and requested loan into a
// bounded creditworthiness score.
package scoring

import (
	"math"

	"github.com/creditoya/backend/internal/domain/amortization"
)

// Policy controls how the installment-to-income ratio maps to a score.
// Ratios above MaxRiskPercent lose one point per excess percentage point
// from BaseScore; ratios below gain one point per spare percentage point.
type Policy struct {
	MaxRiskPercent float64
	BaseScore      float64
	MinScore       int
	MaxScore       int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRiskPercent: 30,
		BaseScore:      50,
		MinScore:       1,
		MaxScore:       100,
	}
}

type Scorer struct {
	calc   *amortization.Calculator
	policy Policy
}

func NewScorer(calc *amortization.Calculator, policy Policy) *Scorer {
	if policy.MinScore <= 0 {
		policy.MinScore = 1
	}
	if policy.MaxScore < policy.MinScore {
		policy.MaxScore = policy.MinScore
	}
	return &Scorer{calc: calc, policy: policy}
}

// Score never fails: an applicant without income gets the minimum score.
func (s *Scorer) Score(monthlyIncome, principal int64, termMonths int) int {
	if monthlyIncome <= 0 {
		return s.policy.MinScore
	}

	rate := s.calc.MockAnnualRateForTerm(termMonths)
	installment := amortization.MonthlyPayment(float64(principal), rate, termMonths)
	ratioPercent := installment.InexactFloat64() / float64(monthlyIncome) * 100

	return s.scoreForRatio(ratioPercent)
}

func (s *Scorer) scoreForRatio(ratioPercent float64) int {
	minScore := float64(s.policy.MinScore)
	maxScore := float64(s.policy.MaxScore)

	var raw float64
	if ratioPercent > s.policy.MaxRiskPercent {
		raw = math.Max(minScore, s.policy.BaseScore-(ratioPercent-s.policy.MaxRiskPercent))
	} else {
		raw = math.Min(maxScore, s.policy.BaseScore+(s.policy.MaxRiskPercent-ratioPercent))
	}
	if math.IsNaN(raw) {
		return s.policy.MinScore
	}

	score := int(math.Floor(raw + 0.5))
	if score < s.policy.MinScore {
		return s.policy.MinScore
	}
	if score > s.policy.MaxScore {
		return s.policy.MaxScore
	}
	return score
}
