// Package finance holds the OYKEN formula chain: variance, gross and
// contribution margin, fixed and variable costs, breakeven, EBITDA, budget
// reading, comparables, trends and the income statement.
//
// Inputs are core types; every function is pure. Amounts stay in cents and
// ratios are decimal.Decimal fractions (0.25, not 25) unless the name says Pct.
package finance

import (
	"errors"

	"github.com/shopspring/decimal"

	"oyken/internal/core"
)

var (
	// ErrNoSales is returned when a ratio needs a positive sales figure.
	ErrNoSales = errors.New("sales must be positive")
	// ErrNonPositiveMargin is returned instead of dividing by a margin ≤ 0.
	ErrNonPositiveMargin = errors.New("margin must be positive")
	// ErrNoData is returned when a report has nothing to work on.
	ErrNoData = errors.New("no data")
)

var hundred = decimal.NewFromInt(100)

// pct returns num/den×100, or zero when den is zero.
func pct(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred)
}

func maxMoney(a, b core.Money) core.Money {
	if a.Cents > b.Cents {
		return a
	}
	return b
}
