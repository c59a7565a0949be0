// Package storage defines the repository ports every backend implements.
package storage

import (
	"context"

	"oyken/internal/core"
)

// Ports for persistence backends.
type (
	SalesStore interface {
		// UpsertSales stores the record for its date, replacing any existing one.
		UpsertSales(ctx context.Context, s core.DailySales) error
		// GetSales returns core.ErrNotFound when the day has no record.
		GetSales(ctx context.Context, d core.Date) (core.DailySales, error)
		// ListSales returns records inside r ordered by date.
		ListSales(ctx context.Context, r DateRange) ([]core.DailySales, error)
	}

	PurchaseStore interface {
		// AddPurchase stores the purchase, assigns an ID when empty and adds
		// the supplier to the master list.
		AddPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
		ListPurchases(ctx context.Context, p core.Period) ([]core.Purchase, error)
		ListSuppliers(ctx context.Context) ([]string, error)
	}

	ExpenseStore interface {
		AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		ListExpenses(ctx context.Context, p core.Period) ([]core.Expense, error)
	}

	StaffStore interface {
		// SavePosition inserts or replaces a position by ID.
		SavePosition(ctx context.Context, p core.Position) (core.Position, error)
		ListPositions(ctx context.Context, year int) ([]core.Position, error)
	}

	InventoryStore interface {
		// SaveInventory replaces the snapshot for (year, month).
		SaveInventory(ctx context.Context, s core.InventorySnapshot) error
		GetInventory(ctx context.Context, year, month int) (core.InventorySnapshot, error)
		ListInventory(ctx context.Context, year int) ([]core.InventorySnapshot, error)
	}

	MonthlyStore interface {
		// UpsertMonthly is idempotent per (kind, year, month).
		UpsertMonthly(ctx context.Context, t core.MonthlyTotal) error
		// ListMonthly returns the rows of one year ordered by month. An empty
		// kind returns every kind.
		ListMonthly(ctx context.Context, kind core.MonthlyKind, year int) ([]core.MonthlyTotal, error)
	}

	// Repository is the full persistence surface of the ledger.
	Repository interface {
		SalesStore
		PurchaseStore
		ExpenseStore
		StaffStore
		InventoryStore
		MonthlyStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// DateRange bounds a query. Zero From or To leaves that side open.
type DateRange struct {
	From core.Date
	To   core.Date
}

// All matches every date.
var All = DateRange{}

// RangeOf covers the days of a period.
func RangeOf(p core.Period) DateRange {
	if p.WholeYear() {
		return DateRange{From: core.NewDate(p.Year, 1, 1), To: core.NewDate(p.Year, 12, 31)}
	}
	start := core.NewDate(p.Year, p.Month, 1)
	return DateRange{From: start, To: core.DateOf(start.AddDate(0, 1, -1))}
}

// Contains reports whether d is inside the range, bounds included.
func (r DateRange) Contains(d core.Date) bool {
	if !r.From.IsZero() && d.Before(r.From.Time) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To.Time) {
		return false
	}
	return true
}
