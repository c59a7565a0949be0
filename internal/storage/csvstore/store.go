// Package csvstore persists the ledger as one CSV file per table, compatible
// with the files the dashboard has always written.
package csvstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"oyken/internal/core"
	"oyken/internal/storage"
)

type monthlySpec struct {
	table  table
	column string
}

var monthlyTables = map[core.MonthlyKind]monthlySpec{
	core.KindSales:              {monthlyTable("ventas_mensuales.csv", "ventas_total_eur"), "ventas_total_eur"},
	core.KindPurchases:          {monthlyTable("compras_mensuales.csv", "compras_total_eur"), "compras_total_eur"},
	core.KindPayroll:            {monthlyTable("rrhh_mensual.csv", "rrhh_total_eur"), "rrhh_total_eur"},
	core.KindExpenses:           {monthlyTable("gastos_mensuales.csv", "gastos_total_eur"), "gastos_total_eur"},
	core.KindInventoryVariation: {monthlyTable("inventario_mensual.csv", "variacion_inventario_eur"), "variacion_inventario_eur"},
}

// Store is a directory of CSV tables. Each table has its own mutex, so
// concurrent writers in one process never interleave read-modify-write
// cycles on the same file.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ storage.Repository = (*Store)(nil)

// New opens (and creates if needed) the data directory.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, logger: logger, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lock(t table) func() {
	s.mu.Lock()
	l, ok := s.locks[t.file]
	if !ok {
		l = &sync.Mutex{}
		s.locks[t.file] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) read(t table) ([]row, error) {
	unlock := s.lock(t)
	defer unlock()
	rows, _, err := readTable(s.dir, t)
	return rows, err
}

// update runs a read-modify-write cycle under the table lock.
func (s *Store) update(t table, fn func([]row) ([]row, error)) error {
	unlock := s.lock(t)
	defer unlock()
	rows, _, err := readTable(s.dir, t)
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	return writeTable(s.dir, t, rows)
}

// Migrate rewrites every table still in an older schema version and returns
// the files it touched.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	tables := []table{salesTable, purchasesTable, suppliersTable, expensesTable, positionsTable, inventoryTable}
	for _, k := range core.MonthlyKinds {
		tables = append(tables, monthlyTables[k].table)
	}
	var migrated []string
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return migrated, err
		}
		done, err := s.migrateTable(t)
		if err != nil {
			return migrated, err
		}
		if done {
			s.logger.InfoContext(ctx, "Migrated CSV table", "file", t.file, "to_version", SchemaVersion)
			migrated = append(migrated, t.file)
		}
	}
	return migrated, nil
}

func (s *Store) migrateTable(t table) (bool, error) {
	unlock := s.lock(t)
	defer unlock()
	if _, err := os.Stat(s.path(t)); os.IsNotExist(err) {
		return false, nil
	}
	rows, version, err := readTable(s.dir, t)
	if err != nil {
		return false, err
	}
	if version >= SchemaVersion {
		return false, nil
	}
	if t.file == expensesTable.file || t.file == purchasesTable.file || t.file == positionsTable.file {
		for _, r := range rows {
			if r["id"] == "" {
				r["id"] = uuid.NewString()
			}
		}
	}
	return true, writeTable(s.dir, t, rows)
}

func (s *Store) path(t table) string {
	return filepath.Join(s.dir, t.file)
}

func (s *Store) UpsertSales(_ context.Context, d core.DailySales) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.update(salesTable, func(rows []row) ([]row, error) {
		key := d.Date.String()
		out := rows[:0]
		for _, r := range rows {
			existing, err := core.ParseDate(r["fecha"])
			if err == nil && existing.String() == key {
				continue
			}
			out = append(out, r)
		}
		out = append(out, encodeSales(d))
		sort.SliceStable(out, func(i, j int) bool { return out[i]["fecha"] < out[j]["fecha"] })
		return out, nil
	})
}

func (s *Store) GetSales(ctx context.Context, d core.Date) (core.DailySales, error) {
	list, err := s.ListSales(ctx, storage.DateRange{From: d, To: d})
	if err != nil {
		return core.DailySales{}, err
	}
	if len(list) == 0 {
		return core.DailySales{}, core.ErrNotFound
	}
	return list[len(list)-1], nil
}

func (s *Store) ListSales(_ context.Context, dr storage.DateRange) ([]core.DailySales, error) {
	rows, err := s.read(salesTable)
	if err != nil {
		return nil, err
	}
	out := make([]core.DailySales, 0, len(rows))
	for i, r := range rows {
		rec, err := decodeSales(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", salesTable.file, i+1, err)
		}
		if dr.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
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
	err := s.update(purchasesTable, func(rows []row) ([]row, error) {
		return append(rows, encodePurchase(p)), nil
	})
	if err != nil {
		return p, err
	}
	err = s.update(suppliersTable, func(rows []row) ([]row, error) {
		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r["proveedor"])
		}
		if _, added := core.MergeSuppliers(names, p.Supplier); added {
			rows = append(rows, row{"proveedor": p.Supplier})
		}
		return rows, nil
	})
	return p, err
}

func (s *Store) ListPurchases(_ context.Context, p core.Period) ([]core.Purchase, error) {
	rows, err := s.read(purchasesTable)
	if err != nil {
		return nil, err
	}
	var out []core.Purchase
	for i, r := range rows {
		rec, err := decodePurchase(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", purchasesTable.file, i+1, err)
		}
		if p.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]string, error) {
	rows, err := s.read(suppliersTable)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range rows {
		out, _ = core.MergeSuppliers(out, r["proveedor"])
	}
	return out, nil
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := s.update(expensesTable, func(rows []row) ([]row, error) {
		return append(rows, encodeExpense(e)), nil
	})
	return e, err
}

func (s *Store) ListExpenses(_ context.Context, p core.Period) ([]core.Expense, error) {
	rows, err := s.read(expensesTable)
	if err != nil {
		return nil, err
	}
	var out []core.Expense
	for i, r := range rows {
		rec, err := decodeExpense(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", expensesTable.file, i+1, err)
		}
		if p.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) SavePosition(_ context.Context, p core.Position) (core.Position, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.update(positionsTable, func(rows []row) ([]row, error) {
		for i, r := range rows {
			if r["id"] == p.ID {
				rows[i] = encodePosition(p)
				return rows, nil
			}
		}
		return append(rows, encodePosition(p)), nil
	})
	return p, err
}

func (s *Store) ListPositions(_ context.Context, year int) ([]core.Position, error) {
	rows, err := s.read(positionsTable)
	if err != nil {
		return nil, err
	}
	var out []core.Position
	for i, r := range rows {
		rec, err := decodePosition(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", positionsTable.file, i+1, err)
		}
		if rec.Year == year {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) SaveInventory(_ context.Context, snap core.InventorySnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.update(inventoryTable, func(rows []row) ([]row, error) {
		out := rows[:0]
		for _, r := range rows {
			rec, err := decodeInventory(r)
			if err == nil && rec.Year == snap.Year && rec.Month == snap.Month {
				continue
			}
			out = append(out, r)
		}
		return append(out, encodeInventory(snap)), nil
	})
}

func (s *Store) GetInventory(ctx context.Context, year, month int) (core.InventorySnapshot, error) {
	list, err := s.ListInventory(ctx, year)
	if err != nil {
		return core.InventorySnapshot{}, err
	}
	for _, snap := range list {
		if snap.Month == month {
			return snap, nil
		}
	}
	return core.InventorySnapshot{}, core.ErrNotFound
}

func (s *Store) ListInventory(_ context.Context, year int) ([]core.InventorySnapshot, error) {
	rows, err := s.read(inventoryTable)
	if err != nil {
		return nil, err
	}
	var out []core.InventorySnapshot
	for i, r := range rows {
		rec, err := decodeInventory(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", inventoryTable.file, i+1, err)
		}
		if rec.Year == year {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *Store) UpsertMonthly(_ context.Context, t core.MonthlyTotal) error {
	if err := t.Validate(); err != nil {
		return err
	}
	spec := monthlyTables[t.Kind]
	return s.update(spec.table, func(rows []row) ([]row, error) {
		out := rows[:0]
		for _, r := range rows {
			rec, err := decodeMonthly(r, t.Kind, spec.column)
			if err == nil && rec.Year == t.Year && rec.Month == t.Month {
				continue
			}
			out = append(out, r)
		}
		out = append(out, encodeMonthly(t, spec.column))
		sort.SliceStable(out, func(i, j int) bool {
			yi, _ := parseInt(out[i]["anio"])
			yj, _ := parseInt(out[j]["anio"])
			if yi != yj {
				return yi < yj
			}
			mi, _ := parseMonth(out[i]["mes"])
			mj, _ := parseMonth(out[j]["mes"])
			return mi < mj
		})
		return out, nil
	})
}

func (s *Store) ListMonthly(_ context.Context, kind core.MonthlyKind, year int) ([]core.MonthlyTotal, error) {
	kinds := core.MonthlyKinds
	if kind != "" {
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown monthly kind %q", kind)
		}
		kinds = []core.MonthlyKind{kind}
	}
	var out []core.MonthlyTotal
	for _, k := range kinds {
		spec := monthlyTables[k]
		rows, err := s.read(spec.table)
		if err != nil {
			return nil, err
		}
		for i, r := range rows {
			rec, err := decodeMonthly(r, k, spec.column)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", spec.table.file, i+1, err)
			}
			if rec.Year == year {
				out = append(out, rec)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// Ping checks the data directory is still reachable.
func (s *Store) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *Store) Close() error { return nil }
