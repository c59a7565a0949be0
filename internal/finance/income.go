package finance

import (
	"github.com/shopspring/decimal"

	"oyken/internal/core"
)

type IncomeInput struct {
	Period             core.Period
	Sales              core.Money
	Purchases          core.Money
	InventoryVariation core.Money
	Payroll            core.Money
	OperatingExpenses  core.Money
}

// Statement is the income statement (cuenta de resultados) of a period.
type Statement struct {
	IncomeInput
	CostOfSales     core.Money
	GrossMargin     core.Money
	GrossMarginPct  decimal.Decimal
	OperatingResult core.Money
}

// IncomeStatement derives cost of sales, gross margin and operating result.
// Cost of sales is purchases plus inventory variation.
func IncomeStatement(in IncomeInput) Statement {
	st := Statement{IncomeInput: in}
	st.CostOfSales = in.Purchases.Add(in.InventoryVariation)
	st.GrossMargin = in.Sales.Sub(st.CostOfSales)
	if in.Sales.Cents > 0 {
		st.GrossMarginPct = pct(st.GrossMargin.Decimal(), in.Sales.Decimal())
	}
	st.OperatingResult = st.GrossMargin.Sub(in.Payroll).Sub(in.OperatingExpenses)
	return st
}
