// Package memory is an in-process storage backend used by tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"oyken/internal/core"
	"oyken/internal/storage"
)

type monthlyKey struct {
	kind  core.MonthlyKind
	year  int
	month int
}

type Store struct {
	mu        sync.Mutex
	sales     map[string]core.DailySales
	purchases []core.Purchase
	suppliers []string
	expenses  []core.Expense
	positions []core.Position
	inventory map[[2]int]core.InventorySnapshot
	monthly   map[monthlyKey]core.MonthlyTotal
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		sales:     make(map[string]core.DailySales),
		inventory: make(map[[2]int]core.InventorySnapshot),
		monthly:   make(map[monthlyKey]core.MonthlyTotal),
	}
}

func (s *Store) UpsertSales(_ context.Context, d core.DailySales) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[d.Date.String()] = cloneSales(d)
	return nil
}

func (s *Store) GetSales(_ context.Context, d core.Date) (core.DailySales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sales[d.String()]
	if !ok {
		return core.DailySales{}, core.ErrNotFound
	}
	return cloneSales(rec), nil
}

func (s *Store) ListSales(_ context.Context, r storage.DateRange) ([]core.DailySales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.DailySales, 0, len(s.sales))
	for _, rec := range s.sales {
		if r.Contains(rec.Date) {
			out = append(out, cloneSales(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) AddPurchase(_ context.Context, p core.Purchase) (core.Purchase, error) {
	p.Supplier = core.NormalizeSupplier(p.Supplier)
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, p)
	s.suppliers, _ = core.MergeSuppliers(s.suppliers, p.Supplier)
	return p, nil
}

func (s *Store) ListPurchases(_ context.Context, p core.Period) ([]core.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Purchase
	for _, x := range s.purchases {
		if p.Contains(x.Date) {
			out = append(out, x)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suppliers...), nil
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, p core.Period) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if p.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) SavePosition(_ context.Context, p core.Position) (core.Position, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
		s.positions = append(s.positions, p)
		return p, nil
	}
	for i := range s.positions {
		if s.positions[i].ID == p.ID {
			s.positions[i] = p
			return p, nil
		}
	}
	s.positions = append(s.positions, p)
	return p, nil
}

func (s *Store) ListPositions(_ context.Context, year int) ([]core.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Position
	for _, p := range s.positions {
		if p.Year == year {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) SaveInventory(_ context.Context, snap core.InventorySnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[[2]int{snap.Year, snap.Month}] = snap
	return nil
}

func (s *Store) GetInventory(_ context.Context, year, month int) (core.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.inventory[[2]int{year, month}]
	if !ok {
		return core.InventorySnapshot{}, core.ErrNotFound
	}
	return snap, nil
}

func (s *Store) ListInventory(_ context.Context, year int) ([]core.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.InventorySnapshot
	for k, snap := range s.inventory {
		if k[0] == year {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *Store) UpsertMonthly(_ context.Context, t core.MonthlyTotal) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly[monthlyKey{t.Kind, t.Year, t.Month}] = t
	return nil
}

func (s *Store) ListMonthly(_ context.Context, kind core.MonthlyKind, year int) ([]core.MonthlyTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MonthlyTotal
	for k, t := range s.monthly {
		if k.year == year && (kind == "" || k.kind == kind) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneSales(d core.DailySales) core.DailySales {
	out := core.NewDailySales(d.Date)
	out.Notes = d.Notes
	for _, sh := range core.Shifts {
		out.Sales[sh] = d.Sales[sh]
		out.Covers[sh] = d.Covers[sh]
		out.Tickets[sh] = d.Tickets[sh]
	}
	return out
}
