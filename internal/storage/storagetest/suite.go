// Package storagetest is a conformance suite shared by every storage backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oyken/internal/core"
	"oyken/internal/storage"
)

// Factory opens a fresh, empty repository for one subtest.
type Factory func(t *testing.T) storage.Repository

// Run exercises every port of the repository returned by open.
func Run(t *testing.T, open Factory) {
	t.Run("sales upsert by date", func(t *testing.T) { testSales(t, open(t)) })
	t.Run("purchases and suppliers", func(t *testing.T) { testPurchases(t, open(t)) })
	t.Run("expenses by period", func(t *testing.T) { testExpenses(t, open(t)) })
	t.Run("positions by year", func(t *testing.T) { testPositions(t, open(t)) })
	t.Run("inventory one per month", func(t *testing.T) { testInventory(t, open(t)) })
	t.Run("monthly upsert is idempotent", func(t *testing.T) { testMonthly(t, open(t)) })
	t.Run("empty store", func(t *testing.T) { testEmpty(t, open(t)) })
}

func sales(d core.Date, morning, night int64) core.DailySales {
	s := core.NewDailySales(d)
	s.Sales[core.Morning] = core.Money{Cents: morning}
	s.Sales[core.Night] = core.Money{Cents: night}
	s.Covers[core.Night] = 12
	s.Tickets[core.Morning] = 3
	s.Tickets[core.Night] = 9
	s.Notes = "terraza, lluvia"
	return s
}

func testSales(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	d := core.NewDate(2025, 3, 14)

	require.NoError(t, repo.UpsertSales(ctx, sales(d, 10000, 20050)))
	require.NoError(t, repo.UpsertSales(ctx, sales(core.NewDate(2025, 3, 1), 500, 0)))
	require.NoError(t, repo.UpsertSales(ctx, sales(core.NewDate(2025, 4, 1), 700, 0)))
	require.NoError(t, repo.UpsertSales(ctx, sales(d, 12000, 20050)))

	got, err := repo.GetSales(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, int64(32050), got.Total().Cents)
	assert.Equal(t, 12, got.TotalTickets())
	assert.Equal(t, 12, got.Covers[core.Night])
	assert.Equal(t, "terraza, lluvia", got.Notes)

	march, err := repo.ListSales(ctx, storage.RangeOf(core.Period{Year: 2025, Month: 3}))
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.True(t, march[0].Date.Equal(core.NewDate(2025, 3, 1).Time))
	assert.True(t, march[1].Date.Equal(d.Time))

	all, err := repo.ListSales(ctx, storage.All)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.GetSales(ctx, core.NewDate(2020, 1, 1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testPurchases(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	p, err := repo.AddPurchase(ctx, core.Purchase{
		Date: core.NewDate(2025, 3, 2), Supplier: "Makro", Family: "Bebidas", Cost: core.Money{Cents: 4599},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	_, err = repo.AddPurchase(ctx, core.Purchase{
		Date: core.NewDate(2025, 3, 20), Supplier: " makro ", Family: "Limpieza", Cost: core.Money{Cents: 1000},
	})
	require.NoError(t, err)
	_, err = repo.AddPurchase(ctx, core.Purchase{
		Date: core.NewDate(2025, 4, 1), Supplier: "Pescados Ría", Family: "Materia prima", Cost: core.Money{Cents: 25000},
	})
	require.NoError(t, err)

	march, err := repo.ListPurchases(ctx, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, int64(4599), march[0].Cost.Cents)

	year, err := repo.ListPurchases(ctx, core.Period{Year: 2025})
	require.NoError(t, err)
	assert.Len(t, year, 3)

	suppliers, err := repo.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Makro", "Pescados Ría"}, suppliers)
}

func testExpenses(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	e, err := repo.AddExpense(ctx, core.Expense{
		Date: core.NewDate(2025, 1, 5), Concept: "Alquiler enero", Category: "Alquiler",
		Type: core.Fixed, Role: core.Structural, Cost: core.Money{Cents: 150000},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	_, err = repo.AddExpense(ctx, core.Expense{
		Date: core.NewDate(2025, 2, 5), Concept: "Gestoría", Category: "Servicios profesionales",
		Type: core.Variable, Role: core.Operational, Cost: core.Money{Cents: 9000},
	})
	require.NoError(t, err)

	jan, err := repo.ListExpenses(ctx, core.Period{Year: 2025, Month: 1})
	require.NoError(t, err)
	require.Len(t, jan, 1)
	assert.Equal(t, core.Fixed, jan[0].Type)
	assert.Equal(t, core.Structural, jan[0].Role)
	assert.Equal(t, "Alquiler enero", jan[0].Concept)

	year, err := repo.ListExpenses(ctx, core.Period{Year: 2025})
	require.NoError(t, err)
	assert.Len(t, year, 2)
}

func testPositions(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	p := core.Position{Year: 2025, Title: "Jefe de cocina", AnnualGross: core.Money{Cents: 3000000}, Role: core.StaffMinimum}
	p.Headcount = [12]int{1, 1, 1, 1, 1, 1, 2, 2, 1, 1, 1, 1}

	saved, err := repo.SavePosition(ctx, p)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	saved.Headcount[0] = 3
	_, err = repo.SavePosition(ctx, saved)
	require.NoError(t, err)
	_, err = repo.SavePosition(ctx, core.Position{Year: 2024, Title: "Camarero", AnnualGross: core.Money{Cents: 1800000}, Role: core.StaffReinforce})
	require.NoError(t, err)

	list, err := repo.ListPositions(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
	assert.Equal(t, 3, list[0].Headcount[0])
	assert.Equal(t, 2, list[0].Headcount[6])
	assert.Equal(t, core.StaffMinimum, list[0].Role)
}

func testInventory(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	at := time.Date(2025, 2, 28, 22, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveInventory(ctx, core.InventorySnapshot{Year: 2025, Month: 2, Value: core.Money{Cents: 500000}, RecordedAt: at}))
	require.NoError(t, repo.SaveInventory(ctx, core.InventorySnapshot{Year: 2025, Month: 2, Value: core.Money{Cents: 520000}, RecordedAt: at}))
	require.NoError(t, repo.SaveInventory(ctx, core.InventorySnapshot{Year: 2025, Month: 1, Value: core.Money{Cents: 480000}, RecordedAt: at}))

	got, err := repo.GetInventory(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(520000), got.Value.Cents)
	assert.True(t, got.RecordedAt.Equal(at))

	list, err := repo.ListInventory(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Month)

	_, err = repo.GetInventory(ctx, 2025, 3)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testMonthly(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	row := core.MonthlyTotal{Kind: core.KindSales, Year: 2025, Month: 3, Amount: core.Money{Cents: 1234567}, UpdatedAt: time.Date(2025, 4, 1, 3, 15, 0, 0, time.UTC)}

	require.NoError(t, repo.UpsertMonthly(ctx, row))
	require.NoError(t, repo.UpsertMonthly(ctx, row))
	require.NoError(t, repo.UpsertMonthly(ctx, core.MonthlyTotal{Kind: core.KindInventoryVariation, Year: 2025, Month: 3, Amount: core.Money{Cents: -2500}}))
	require.NoError(t, repo.UpsertMonthly(ctx, core.MonthlyTotal{Kind: core.KindSales, Year: 2025, Month: 1, Amount: core.Money{Cents: 100}}))

	sales, err := repo.ListMonthly(ctx, core.KindSales, 2025)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, 1, sales[0].Month)
	assert.Equal(t, row.Amount, sales[1].Amount)
	assert.True(t, sales[1].UpdatedAt.Equal(row.UpdatedAt))

	all, err := repo.ListMonthly(ctx, "", 2025)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inv, err := repo.ListMonthly(ctx, core.KindInventoryVariation, 2025)
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, int64(-2500), inv[0].Amount.Cents)

	row.Amount = core.Money{Cents: 1}
	require.NoError(t, repo.UpsertMonthly(ctx, row))
	sales, err = repo.ListMonthly(ctx, core.KindSales, 2025)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, int64(1), sales[1].Amount.Cents)
}

func testEmpty(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.Ping(ctx))

	s, err := repo.ListSales(ctx, storage.All)
	require.NoError(t, err)
	assert.Empty(t, s)
	m, err := repo.ListMonthly(ctx, "", 2025)
	require.NoError(t, err)
	assert.Empty(t, m)
	sup, err := repo.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Empty(t, sup)
	pos, err := repo.ListPositions(ctx, 2025)
	require.NoError(t, err)
	assert.Empty(t, pos)
}
