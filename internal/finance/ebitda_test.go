package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oyken/internal/core"
)

func monthly(kind core.MonthlyKind, month int, euros int64) core.MonthlyTotal {
	return core.MonthlyTotal{Kind: kind, Year: 2025, Month: month, Amount: core.Euros(euros)}
}

func TestEBITDATable(t *testing.T) {
	totals := []core.MonthlyTotal{
		monthly(core.KindSales, 1, 10000),
		monthly(core.KindPurchases, 1, 3000),
		monthly(core.KindPayroll, 1, 4000),
		monthly(core.KindExpenses, 1, 1000),
		monthly(core.KindInventoryVariation, 1, 500),
		monthly(core.KindSales, 2, 8000),
		{Kind: core.KindSales, Year: 2024, Month: 1, Amount: core.Euros(1)},
	}

	rows := EBITDATable(core.Period{Year: 2025}, totals)
	require.Len(t, rows, 12)
	assert.Equal(t, core.Euros(2000), rows[0].Base)
	assert.Equal(t, core.Euros(1500), rows[0].Adjusted)
	assert.Equal(t, core.Euros(8000), rows[1].Base)
	assert.True(t, rows[2].Sales.IsZero())

	total := TotalEBITDA(rows)
	assert.Equal(t, core.Euros(18000), total.Sales)
	assert.Equal(t, core.Euros(9500), total.Adjusted)

	one := EBITDATable(core.Period{Year: 2025, Month: 2}, totals)
	require.Len(t, one, 1)
	assert.Equal(t, 2, one[0].Month)
}

func TestBudgetReading(t *testing.T) {
	s := BreakevenSummary{Real: core.Euros(12500), Gap: core.Euros(2500), ContributionRatio: dec("0.4")}

	b := BudgetReading(core.Euros(13500), core.Euros(500), s)
	assert.Equal(t, core.Euros(400), b.ExpectedEBITDA)
	require.NotNil(t, b.DeltaVsTarget)
	assert.Equal(t, core.Euros(-100), *b.DeltaVsTarget)
	require.NotNil(t, b.AbsorptionPct)
	assert.True(t, b.AbsorptionPct.Equal(dec("40")))
	assert.Equal(t, ProfileEfficient, b.Profile)

	require.Len(t, b.Scenarios, 3)
	assert.Equal(t, core.Euros(12500), b.Scenarios[0].SalesMin)
	assert.True(t, b.Scenarios[0].EBITDAMax.IsZero())
	assert.Equal(t, core.Euros(13750), b.Scenarios[1].SalesMin)
	assert.Equal(t, core.Euros(14250), b.Scenarios[1].SalesMax)
	assert.Equal(t, core.Euros(500), b.Scenarios[1].EBITDAMin)
	assert.Equal(t, core.Euros(700), b.Scenarios[1].EBITDAMax)
	assert.Equal(t, core.Euros(15000), b.Scenarios[2].SalesMin)
	assert.Equal(t, core.Euros(1000), b.Scenarios[2].EBITDAMin)
}

func TestBudgetReadingProfiles(t *testing.T) {
	s := BreakevenSummary{Real: core.Euros(12500), Gap: core.Euros(2500), ContributionRatio: dec("0.4")}

	low := BudgetReading(core.Euros(12000), core.Money{}, s)
	assert.True(t, low.ExpectedEBITDA.IsZero())
	assert.Nil(t, low.DeltaVsTarget)
	assert.True(t, low.AbsorptionPct.IsZero())
	assert.Equal(t, ProfileSustainable, low.Profile)

	high := BudgetReading(core.Euros(15000), core.Money{}, s)
	assert.Equal(t, ProfileDemanding, high.Profile)

	noGap := BudgetReading(core.Euros(15000), core.Money{}, BreakevenSummary{Real: core.Euros(12500), ContributionRatio: dec("0.4")})
	assert.Nil(t, noGap.AbsorptionPct)
	assert.Empty(t, noGap.Profile)
}

func TestIncomeStatement(t *testing.T) {
	st := IncomeStatement(IncomeInput{
		Period:             core.Period{Year: 2025, Month: 1},
		Sales:              core.Euros(10000),
		Purchases:          core.Euros(3000),
		InventoryVariation: core.Euros(500),
		Payroll:            core.Euros(4000),
		OperatingExpenses:  core.Euros(1000),
	})
	assert.Equal(t, core.Euros(3500), st.CostOfSales)
	assert.Equal(t, core.Euros(6500), st.GrossMargin)
	assert.True(t, st.GrossMarginPct.Equal(dec("65")))
	assert.Equal(t, core.Euros(1500), st.OperatingResult)

	empty := IncomeStatement(IncomeInput{Purchases: core.Euros(10)})
	assert.True(t, empty.GrossMarginPct.IsZero())
}
