package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/creditoya/backend/internal/domain/amortization"
	"github.com/stretchr/testify/assert"
)

func newTestScorer() *Scorer {
	return NewScorer(amortization.NewCalculator(amortization.DefaultRateTable()), DefaultPolicy())
}

func TestScoreWithoutIncomeIsMinimum(t *testing.T) {
	s := newTestScorer()
	for _, income := range []int64{0, -1, -500_000} {
		for _, principal := range []int64{1, 1_000_000, 90_000_000} {
			for _, term := range []int{1, 24, 120} {
				assert.Equal(t, 1, s.Score(income, principal, term))
			}
		}
	}
}

func TestScoreKnownValues(t *testing.T) {
	s := newTestScorer()
	cases := []struct {
		name      string
		income    int64
		principal int64
		term      int
		want      int
	}{
		{name: "comfortable ratio", income: 1_000_000, principal: 1_000_000, term: 24, want: 76},
		{name: "moderate ratio", income: 300_000, principal: 1_000_000, term: 24, want: 65},
		{name: "short term tier", income: 500_000, principal: 1_000_000, term: 12, want: 63},
		{name: "just under approval", income: 200_000, principal: 1_000_000, term: 24, want: 58},
		{name: "unaffordable", income: 100_000, principal: 5_000_000, term: 12, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Score(tc.income, tc.principal, tc.term))
		})
	}
}

func TestScoreAlwaysWithinBounds(t *testing.T) {
	s := newTestScorer()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		income := rng.Int63n(10_000_000) + 1
		principal := rng.Int63n(1_000_000_000) + 1
		term := rng.Intn(480) + 1
		got := s.Score(income, principal, term)
		assert.GreaterOrEqual(t, got, 1)
		assert.LessOrEqual(t, got, 100)
	}
}

func TestScoreForExtremeRatios(t *testing.T) {
	s := newTestScorer()
	for _, ratio := range []float64{0, 1e-9, 20, 30, 30.0001, 79, 80, 1e3, 1e6, math.Inf(1), math.NaN()} {
		got := s.scoreForRatio(ratio)
		assert.GreaterOrEqual(t, got, 1, "ratio %v", ratio)
		assert.LessOrEqual(t, got, 100, "ratio %v", ratio)
	}
	assert.Equal(t, 80, s.scoreForRatio(0))
	assert.Equal(t, 60, s.scoreForRatio(20))
	assert.Equal(t, 50, s.scoreForRatio(30))
	assert.Equal(t, 1, s.scoreForRatio(1e6))
}

func TestScoreRespectsInjectedPolicy(t *testing.T) {
	s := NewScorer(amortization.NewCalculator(amortization.DefaultRateTable()), Policy{
		MaxRiskPercent: 40,
		BaseScore:      50,
		MinScore:       1,
		MaxScore:       100,
	})
	assert.Equal(t, 70, s.scoreForRatio(20))
}
