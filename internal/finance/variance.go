package finance

import (
	"github.com/shopspring/decimal"

	"oyken/internal/core"
)

// VarianceResult is the absolute and relative change of Actual against Base.
type VarianceResult struct {
	Actual core.Money
	Base   core.Money
	Delta  core.Money
	// Pct is (Actual-Base)/Base×100, zero when Base is zero.
	Pct decimal.Decimal
}

// Variance compares actual with base. A zero base yields a zero percentage.
func Variance(actual, base core.Money) VarianceResult {
	delta := actual.Sub(base)
	r := VarianceResult{Actual: actual, Base: base, Delta: delta, Pct: decimal.Zero}
	if base.Cents != 0 {
		r.Pct = pct(delta.Decimal(), base.Decimal())
	}
	return r
}

// HasBase reports whether the percentage is meaningful.
func (v VarianceResult) HasBase() bool {
	return v.Base.Cents != 0
}

// PctRounded rounds the percentage to one decimal for display.
func (v VarianceResult) PctRounded() decimal.Decimal {
	return v.Pct.Round(1)
}
