package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"oyken/internal/calendar"
	"oyken/internal/core"
)

// Breakeven returns fixed/margin, the sales needed to cover fixed costs.
func Breakeven(fixed core.Money, margin decimal.Decimal) (core.Money, error) {
	if !margin.IsPositive() {
		return core.Money{}, ErrNonPositiveMargin
	}
	return core.MoneyFromDecimal(fixed.Decimal().Div(margin)), nil
}

// DailyBreakeven spreads be over the calendar days of the period.
func DailyBreakeven(be core.Money, year, month int) core.Money {
	days := calendar.DaysInMonth(year, month)
	return core.MoneyFromDecimal(be.Decimal().Div(decimal.NewFromInt(int64(days))))
}

// BreakevenInput gathers the figures of one period.
type BreakevenInput struct {
	Period    core.Period
	Sales     core.Money
	Purchases core.Money
	Positions []core.Position
	Expenses  []core.Expense
}

// BreakevenSummary is the breakeven reading of a period.
type BreakevenSummary struct {
	Period            core.Period
	Sales             core.Money
	Purchases         core.Money
	GrossMargin       decimal.Decimal
	Fixed             FixedCostBreakdown
	Variable          VariableCostBreakdown
	Contribution      core.Money
	ContributionRatio decimal.Decimal
	// Operational is fixed costs over gross margin.
	Operational      core.Money
	OperationalDaily core.Money
	// Real is fixed costs over contribution margin.
	Real core.Money
	// Gap is Real − Operational.
	Gap core.Money
}

// ComputeBreakeven runs the whole chain for one period.
func ComputeBreakeven(in BreakevenInput) (BreakevenSummary, error) {
	out := BreakevenSummary{Period: in.Period, Sales: in.Sales, Purchases: in.Purchases}

	gm, err := GrossMargin(in.Sales, in.Purchases)
	if err != nil {
		return out, fmt.Errorf("gross margin %s: %w", in.Period, err)
	}
	out.GrossMargin = gm
	out.Fixed = FixedCosts(in.Positions, in.Expenses, in.Period)
	out.Variable = VariableCosts(in.Purchases, in.Positions, in.Expenses, in.Period)
	out.Contribution, out.ContributionRatio = ContributionMargin(in.Sales, out.Variable.Total)

	out.Operational, err = Breakeven(out.Fixed.Total, gm)
	if err != nil {
		return out, fmt.Errorf("operational breakeven %s: %w", in.Period, err)
	}
	out.OperationalDaily = DailyBreakeven(out.Operational, in.Period.Year, in.Period.Month)

	out.Real, err = Breakeven(out.Fixed.Total, out.ContributionRatio)
	if err != nil {
		return out, fmt.Errorf("real breakeven %s: %w", in.Period, err)
	}
	out.Gap = out.Real.Sub(out.Operational)
	return out, nil
}
