package ledger

import (
	"context"
	"errors"
	"fmt"

	"oyken/internal/core"
	"oyken/internal/log"
	"oyken/internal/storage"
)

// CloseMonth recomputes the five monthly totals of p from the raw records
// and upserts them. Month 0 closes every month of the year. Running it twice
// leaves the same rows.
func (s *Service) CloseMonth(ctx context.Context, p core.Period) ([]core.MonthlyTotal, error) {
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}

	positions, err := s.repo.ListPositions(ctx, p.Year)
	if err != nil {
		return nil, fmt.Errorf("close %s: positions: %w", p, err)
	}

	var out []core.MonthlyTotal
	for _, m := range p.Months() {
		month := core.Period{Year: p.Year, Month: m}
		totals, err := s.monthTotals(ctx, month, positions)
		if err != nil {
			return out, fmt.Errorf("close %s: %w", month, err)
		}
		for _, t := range totals {
			if err := s.repo.UpsertMonthly(ctx, t); err != nil {
				return out, fmt.Errorf("close %s: upsert %s: %w", month, t.Kind, err)
			}
		}
		out = append(out, totals...)
		s.logger.InfoContext(ctx, "Month closed",
			log.FieldOperation, log.OpClose, log.FieldYear, month.Year, log.FieldMonth, month.Month)
	}
	return out, nil
}

func (s *Service) monthTotals(ctx context.Context, p core.Period, positions []core.Position) ([]core.MonthlyTotal, error) {
	days, err := s.repo.ListSales(ctx, storage.RangeOf(p))
	if err != nil {
		return nil, fmt.Errorf("sales: %w", err)
	}
	var sales core.Money
	for _, d := range days {
		sales = sales.Add(d.Total())
	}

	purchases, err := s.repo.ListPurchases(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("purchases: %w", err)
	}
	var bought core.Money
	for _, pu := range purchases {
		bought = bought.Add(pu.Cost)
	}

	var payroll core.Money
	for _, pos := range positions {
		payroll = payroll.Add(pos.MonthlyCost(p.Month))
	}

	expenses, err := s.repo.ListExpenses(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("expenses: %w", err)
	}
	var spent core.Money
	for _, e := range expenses {
		spent = spent.Add(e.Cost)
	}

	variation, err := s.InventoryVariation(ctx, p)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	mk := func(kind core.MonthlyKind, amount core.Money) core.MonthlyTotal {
		return core.MonthlyTotal{Kind: kind, Year: p.Year, Month: p.Month, Amount: amount, UpdatedAt: now}
	}
	return []core.MonthlyTotal{
		mk(core.KindSales, sales),
		mk(core.KindPurchases, bought),
		mk(core.KindPayroll, payroll),
		mk(core.KindExpenses, spent),
		mk(core.KindInventoryVariation, variation),
	}, nil
}

// InventoryVariation is value(m) − value(m−1). It is zero when either
// snapshot is missing.
func (s *Service) InventoryVariation(ctx context.Context, p core.Period) (core.Money, error) {
	cur, err := s.repo.GetInventory(ctx, p.Year, p.Month)
	if errors.Is(err, core.ErrNotFound) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("inventory %s: %w", p, err)
	}
	prev := p.Previous()
	before, err := s.repo.GetInventory(ctx, prev.Year, prev.Month)
	if errors.Is(err, core.ErrNotFound) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("inventory %s: %w", prev, err)
	}
	return cur.Value.Sub(before.Value), nil
}
