package finance

import (
	"github.com/shopspring/decimal"

	"oyken/internal/core"
)

// EBITDA is sales − purchases − payroll − operating expenses.
func EBITDA(sales, purchases, payroll, expenses core.Money) core.Money {
	return sales.Sub(purchases).Sub(payroll).Sub(expenses)
}

// AdjustedEBITDA removes the inventory variation from the base figure.
func AdjustedEBITDA(base, inventoryVariation core.Money) core.Money {
	return base.Sub(inventoryVariation)
}

// EBITDARow is one month of the EBITDA table.
type EBITDARow struct {
	Year               int
	Month              int
	Sales              core.Money
	Purchases          core.Money
	Payroll            core.Money
	Expenses           core.Money
	InventoryVariation core.Money
	Base               core.Money
	Adjusted           core.Money
}

// EBITDATable builds one row per month of p from the monthly rollup rows.
// Months without data are zero-filled.
func EBITDATable(p core.Period, totals []core.MonthlyTotal) []EBITDARow {
	rows := make(map[int]*EBITDARow, 12)
	for _, m := range p.Months() {
		rows[m] = &EBITDARow{Year: p.Year, Month: m}
	}
	for _, t := range totals {
		if t.Year != p.Year {
			continue
		}
		r, ok := rows[t.Month]
		if !ok {
			continue
		}
		switch t.Kind {
		case core.KindSales:
			r.Sales = r.Sales.Add(t.Amount)
		case core.KindPurchases:
			r.Purchases = r.Purchases.Add(t.Amount)
		case core.KindPayroll:
			r.Payroll = r.Payroll.Add(t.Amount)
		case core.KindExpenses:
			r.Expenses = r.Expenses.Add(t.Amount)
		case core.KindInventoryVariation:
			r.InventoryVariation = r.InventoryVariation.Add(t.Amount)
		}
	}
	out := make([]EBITDARow, 0, len(rows))
	for _, m := range p.Months() {
		r := rows[m]
		r.Base = EBITDA(r.Sales, r.Purchases, r.Payroll, r.Expenses)
		r.Adjusted = AdjustedEBITDA(r.Base, r.InventoryVariation)
		out = append(out, *r)
	}
	return out
}

// TotalEBITDA sums a table into a single row with Month 0.
func TotalEBITDA(rows []EBITDARow) EBITDARow {
	var t EBITDARow
	for _, r := range rows {
		t.Year = r.Year
		t.Sales = t.Sales.Add(r.Sales)
		t.Purchases = t.Purchases.Add(r.Purchases)
		t.Payroll = t.Payroll.Add(r.Payroll)
		t.Expenses = t.Expenses.Add(r.Expenses)
		t.InventoryVariation = t.InventoryVariation.Add(r.InventoryVariation)
		t.Base = t.Base.Add(r.Base)
		t.Adjusted = t.Adjusted.Add(r.Adjusted)
	}
	return t
}

const (
	ProfileSustainable = "sustainable"
	ProfileEfficient   = "efficient"
	ProfileDemanding   = "demanding"
)

// Scenario is a sales target band with its expected EBITDA.
type Scenario struct {
	Name      string
	SalesMin  core.Money
	SalesMax  core.Money
	EBITDAMin core.Money
	EBITDAMax core.Money
}

// Budget is the reading of a sales/EBITDA target against the breakeven model.
type Budget struct {
	TargetSales    core.Money
	TargetEBITDA   core.Money
	ExpectedEBITDA core.Money
	// DeltaVsTarget is set only when a positive EBITDA target was given.
	DeltaVsTarget *core.Money
	// AbsorptionPct is the share of the operating gap the sales target
	// covers. Nil when the model has no gap.
	AbsorptionPct *decimal.Decimal
	Profile       string
	Scenarios     []Scenario
}

var (
	efficientLow  = decimal.RequireFromString("0.5")
	efficientHigh = decimal.RequireFromString("0.7")
	thirty        = decimal.NewFromInt(30)
	eighty        = decimal.NewFromInt(80)
)

// BudgetReading evaluates target sales and EBITDA against s.
func BudgetReading(targetSales, targetEBITDA core.Money, s BreakevenSummary) Budget {
	b := Budget{TargetSales: targetSales, TargetEBITDA: targetEBITDA}
	mc := s.ContributionRatio

	b.ExpectedEBITDA = maxMoney(core.Money{}, targetSales.Sub(s.Real).Mul(mc))
	if targetEBITDA.Cents > 0 {
		d := b.ExpectedEBITDA.Sub(targetEBITDA)
		b.DeltaVsTarget = &d
	}

	if s.Gap.Cents > 0 {
		raw := targetSales.Sub(s.Real).Decimal().Div(s.Gap.Decimal())
		abs := decimal.Max(decimal.Zero, raw).Mul(hundred)
		b.AbsorptionPct = &abs
		switch {
		case abs.LessThan(thirty):
			b.Profile = ProfileSustainable
		case abs.LessThan(eighty):
			b.Profile = ProfileEfficient
		default:
			b.Profile = ProfileDemanding
		}
	}

	effMin := s.Real.Add(s.Gap.Mul(efficientLow))
	effMax := s.Real.Add(s.Gap.Mul(efficientHigh))
	b.Scenarios = []Scenario{
		{Name: ProfileSustainable, SalesMin: s.Real, SalesMax: s.Real},
		{
			Name:      ProfileEfficient,
			SalesMin:  effMin,
			SalesMax:  effMax,
			EBITDAMin: effMin.Sub(s.Real).Mul(mc),
			EBITDAMax: effMax.Sub(s.Real).Mul(mc),
		},
		{
			Name:      ProfileDemanding,
			SalesMin:  s.Real.Add(s.Gap),
			SalesMax:  s.Real.Add(s.Gap),
			EBITDAMin: s.Gap.Mul(mc),
			EBITDAMax: s.Gap.Mul(mc),
		},
	}
	return b
}
