package ledger

import (
	"context"
	"fmt"

	"oyken/internal/core"
	"oyken/internal/finance"
	"oyken/internal/storage"
)

// EBITDA returns one row per month of p from the rollup tables, plus the
// total row.
func (s *Service) EBITDA(ctx context.Context, p core.Period) ([]finance.EBITDARow, finance.EBITDARow, error) {
	if err := p.Validate(); err != nil {
		return nil, finance.EBITDARow{}, invalid(err)
	}
	totals, err := s.repo.ListMonthly(ctx, "", p.Year)
	if err != nil {
		return nil, finance.EBITDARow{}, fmt.Errorf("ebitda %s: %w", p, err)
	}
	rows := finance.EBITDATable(p, totals)
	return rows, finance.TotalEBITDA(rows), nil
}

// IncomeStatement reads the closed totals of p into an income statement.
func (s *Service) IncomeStatement(ctx context.Context, p core.Period) (finance.Statement, error) {
	_, total, err := s.EBITDA(ctx, p)
	if err != nil {
		return finance.Statement{}, err
	}
	return finance.IncomeStatement(finance.IncomeInput{
		Period:             p,
		Sales:              total.Sales,
		Purchases:          total.Purchases,
		InventoryVariation: total.InventoryVariation,
		Payroll:            total.Payroll,
		OperatingExpenses:  total.Expenses,
	}), nil
}

// Breakeven computes the breakeven chain of p from the raw records.
func (s *Service) Breakeven(ctx context.Context, p core.Period) (finance.BreakevenSummary, error) {
	if err := p.Validate(); err != nil {
		return finance.BreakevenSummary{}, invalid(err)
	}
	days, err := s.repo.ListSales(ctx, storage.RangeOf(p))
	if err != nil {
		return finance.BreakevenSummary{}, fmt.Errorf("breakeven %s: sales: %w", p, err)
	}
	purchases, err := s.repo.ListPurchases(ctx, p)
	if err != nil {
		return finance.BreakevenSummary{}, fmt.Errorf("breakeven %s: purchases: %w", p, err)
	}
	positions, err := s.repo.ListPositions(ctx, p.Year)
	if err != nil {
		return finance.BreakevenSummary{}, fmt.Errorf("breakeven %s: positions: %w", p, err)
	}
	expenses, err := s.repo.ListExpenses(ctx, p)
	if err != nil {
		return finance.BreakevenSummary{}, fmt.Errorf("breakeven %s: expenses: %w", p, err)
	}

	in := finance.BreakevenInput{Period: p, Positions: positions, Expenses: expenses}
	for _, d := range days {
		in.Sales = in.Sales.Add(d.Total())
	}
	for _, pu := range purchases {
		in.Purchases = in.Purchases.Add(pu.Cost)
	}
	return finance.ComputeBreakeven(in)
}

// Budget reads target sales and EBITDA against the breakeven of p.
func (s *Service) Budget(ctx context.Context, p core.Period, targetSales, targetEBITDA core.Money) (finance.Budget, error) {
	if targetSales.Cents < 0 || targetEBITDA.Cents < 0 {
		return finance.Budget{}, invalid(core.ErrNegativeAmount)
	}
	summary, err := s.Breakeven(ctx, p)
	if err != nil {
		return finance.Budget{}, err
	}
	return finance.BudgetReading(targetSales, targetEBITDA, summary), nil
}

// Comparables builds the comparables view for day. History starts in the
// December two years back so that ISO weeks straddling New Year resolve.
func (s *Service) Comparables(ctx context.Context, day core.Date) (finance.ComparablesReport, error) {
	if err := day.Validate(); err != nil {
		return finance.ComparablesReport{}, invalid(err)
	}
	r := storage.DateRange{From: core.NewDate(day.Year()-2, 12, 1), To: day}
	history, err := s.repo.ListSales(ctx, r)
	if err != nil {
		return finance.ComparablesReport{}, fmt.Errorf("comparables %s: %w", day, err)
	}
	return finance.Comparables(day, history, s.strategy)
}

// Trends computes the trend indicators over the records inside r.
func (s *Service) Trends(ctx context.Context, r storage.DateRange) (finance.TrendsReport, error) {
	history, err := s.repo.ListSales(ctx, r)
	if err != nil {
		return finance.TrendsReport{}, fmt.Errorf("trends: %w", err)
	}
	return finance.Trends(history)
}
