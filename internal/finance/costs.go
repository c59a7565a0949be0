package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"oyken/internal/core"
)

// FixedCostBreakdown splits structural fixed costs by origin.
type FixedCostBreakdown struct {
	Payroll    core.Money
	Expenses   core.Money
	ByCategory []core.CategoryAmount
	Total      core.Money
}

// VariableCostBreakdown splits the costs that move with sales.
type VariableCostBreakdown struct {
	Purchases core.Money
	Expenses  core.Money
	Payroll   core.Money
	Total     core.Money
}

// PayrollCost sums the loaded payroll of positions whose role passes keep
// over the months of p.
func PayrollCost(positions []core.Position, p core.Period, keep func(core.StaffRole) bool) core.Money {
	var total core.Money
	for _, pos := range positions {
		if pos.Year != p.Year || !keep(pos.Role) {
			continue
		}
		for _, m := range p.Months() {
			total = total.Add(pos.MonthlyCost(m))
		}
	}
	return total
}

// FixedCosts is minimum structural payroll plus fixed structural expenses
// dated inside p.
func FixedCosts(positions []core.Position, expenses []core.Expense, p core.Period) FixedCostBreakdown {
	out := FixedCostBreakdown{
		Payroll: PayrollCost(positions, p, core.StaffRole.IsFixed),
	}
	byCat := make(map[string]core.Money)
	for _, e := range expenses {
		if !p.Contains(e.Date) || e.Type != core.Fixed || e.Role != core.Structural {
			continue
		}
		byCat[e.Category] = byCat[e.Category].Add(e.Cost)
		out.Expenses = out.Expenses.Add(e.Cost)
	}
	for name, amount := range byCat {
		out.ByCategory = append(out.ByCategory, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out.ByCategory, func(i, j int) bool {
		if out.ByCategory[i].Amount.Cents != out.ByCategory[j].Amount.Cents {
			return out.ByCategory[i].Amount.Cents > out.ByCategory[j].Amount.Cents
		}
		return out.ByCategory[i].Name < out.ByCategory[j].Name
	})
	out.Total = out.Payroll.Add(out.Expenses)
	return out
}

// VariableCosts is purchases plus variable structural expenses plus the
// payroll of expandable and reinforcement positions.
func VariableCosts(purchases core.Money, positions []core.Position, expenses []core.Expense, p core.Period) VariableCostBreakdown {
	out := VariableCostBreakdown{
		Purchases: purchases,
		Payroll: PayrollCost(positions, p, func(r core.StaffRole) bool {
			return !r.IsFixed()
		}),
	}
	for _, e := range expenses {
		if p.Contains(e.Date) && e.Type == core.Variable && e.Role == core.Structural {
			out.Expenses = out.Expenses.Add(e.Cost)
		}
	}
	out.Total = core.Sum(out.Purchases, out.Expenses, out.Payroll)
	return out
}

// GrossMargin returns 1 − purchases/sales.
func GrossMargin(sales, purchases core.Money) (decimal.Decimal, error) {
	if sales.Cents <= 0 {
		return decimal.Zero, ErrNoSales
	}
	return decimal.NewFromInt(1).Sub(purchases.Decimal().Div(sales.Decimal())), nil
}

// ContributionMargin returns sales − variable costs and its ratio to sales.
// The ratio is zero when sales are not positive.
func ContributionMargin(sales, variable core.Money) (core.Money, decimal.Decimal) {
	amount := sales.Sub(variable)
	if sales.Cents <= 0 {
		return amount, decimal.Zero
	}
	return amount, amount.Decimal().Div(sales.Decimal())
}
