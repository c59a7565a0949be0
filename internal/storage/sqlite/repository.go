// Package sqlite is the SQLite storage backend (pure Go driver, embedded
// golang-migrate migrations).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"oyken/internal/core"
	"oyken/internal/storage"
)

const dayLayout = "2006-01-02"

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens dbPath, runs the migrations and returns the repository.
func NewRepository(dbPath string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite repository ready", "path", dbPath, "schema_version", version)

	return &Repository{db: db, logger: logger}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) UpsertSales(ctx context.Context, s core.DailySales) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_sales (
			day,
			sales_morning_cents, sales_afternoon_cents, sales_night_cents,
			covers_morning, covers_afternoon, covers_night,
			tickets_morning, tickets_afternoon, tickets_night,
			notes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			sales_morning_cents = excluded.sales_morning_cents,
			sales_afternoon_cents = excluded.sales_afternoon_cents,
			sales_night_cents = excluded.sales_night_cents,
			covers_morning = excluded.covers_morning,
			covers_afternoon = excluded.covers_afternoon,
			covers_night = excluded.covers_night,
			tickets_morning = excluded.tickets_morning,
			tickets_afternoon = excluded.tickets_afternoon,
			tickets_night = excluded.tickets_night,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		s.Date.Format(dayLayout),
		s.Sales[core.Morning].Cents, s.Sales[core.Afternoon].Cents, s.Sales[core.Night].Cents,
		s.Covers[core.Morning], s.Covers[core.Afternoon], s.Covers[core.Night],
		s.Tickets[core.Morning], s.Tickets[core.Afternoon], s.Tickets[core.Night],
		s.Notes, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert sales %s: %w", s.Date, err)
	}
	r.logger.DebugContext(ctx, "Sales saved to SQLite", "date", s.Date.String(), "total_cents", s.Total().Cents)
	return nil
}

const salesColumns = `day,
	sales_morning_cents, sales_afternoon_cents, sales_night_cents,
	covers_morning, covers_afternoon, covers_night,
	tickets_morning, tickets_afternoon, tickets_night,
	notes`

func scanSales(sc interface{ Scan(...any) error }) (core.DailySales, error) {
	var (
		day                    string
		sm, sa, sn             int64
		cm, ca, cn, tm, ta, tn int
		notes                  string
	)
	if err := sc.Scan(&day, &sm, &sa, &sn, &cm, &ca, &cn, &tm, &ta, &tn, &notes); err != nil {
		return core.DailySales{}, err
	}
	d, err := core.ParseDate(day)
	if err != nil {
		return core.DailySales{}, err
	}
	s := core.NewDailySales(d)
	s.Sales[core.Morning], s.Sales[core.Afternoon], s.Sales[core.Night] = core.Money{Cents: sm}, core.Money{Cents: sa}, core.Money{Cents: sn}
	s.Covers[core.Morning], s.Covers[core.Afternoon], s.Covers[core.Night] = cm, ca, cn
	s.Tickets[core.Morning], s.Tickets[core.Afternoon], s.Tickets[core.Night] = tm, ta, tn
	s.Notes = notes
	return s, nil
}

func (r *Repository) GetSales(ctx context.Context, d core.Date) (core.DailySales, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+salesColumns+` FROM daily_sales WHERE day = ?`, d.Format(dayLayout))
	s, err := scanSales(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailySales{}, core.ErrNotFound
	}
	if err != nil {
		return core.DailySales{}, fmt.Errorf("get sales %s: %w", d, err)
	}
	return s, nil
}

func (r *Repository) ListSales(ctx context.Context, dr storage.DateRange) ([]core.DailySales, error) {
	from, to := bounds(dr)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+salesColumns+` FROM daily_sales WHERE day BETWEEN ? AND ? ORDER BY day`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []core.DailySales
	for rows.Next() {
		s, err := scanSales(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sales: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) AddPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	p.Supplier = core.NormalizeSupplier(p.Supplier)
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return p, fmt.Errorf("begin purchase tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO purchases (id, day, supplier, family, cost_cents) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Date.Format(dayLayout), p.Supplier, p.Family, p.Cost.Cents); err != nil {
		return p, fmt.Errorf("insert purchase: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO suppliers (name, seq) VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM suppliers))
		 ON CONFLICT(name) DO NOTHING`, p.Supplier); err != nil {
		return p, fmt.Errorf("insert supplier: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return p, fmt.Errorf("commit purchase: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPurchases(ctx context.Context, p core.Period) ([]core.Purchase, error) {
	from, to := bounds(storage.RangeOf(p))
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, day, supplier, family, cost_cents FROM purchases
		 WHERE day BETWEEN ? AND ? ORDER BY day, created_at, rowid`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []core.Purchase
	for rows.Next() {
		var (
			x   core.Purchase
			day string
		)
		if err := rows.Scan(&x.ID, &day, &x.Supplier, &x.Family, &x.Cost.Cents); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		if x.Date, err = core.ParseDate(day); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

func (r *Repository) ListSuppliers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM suppliers ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, day, concept, category, cost_type, cost_role, cost_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date.Format(dayLayout), e.Concept, e.Category, string(e.Type), string(e.Role), e.Cost.Cents)
	if err != nil {
		return e, fmt.Errorf("insert expense: %w", err)
	}
	r.logger.DebugContext(ctx, "Expense saved to SQLite", "id", e.ID, "category", e.Category, "amount_cents", e.Cost.Cents)
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, p core.Period) ([]core.Expense, error) {
	from, to := bounds(storage.RangeOf(p))
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, day, concept, category, cost_type, cost_role, cost_cents FROM expenses
		 WHERE day BETWEEN ? AND ? ORDER BY day, created_at, rowid`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e              core.Expense
			day, typ, role string
		)
		if err := rows.Scan(&e.ID, &day, &e.Concept, &e.Category, &typ, &role, &e.Cost.Cents); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(day); err != nil {
			return nil, err
		}
		e.Type, e.Role = core.CostType(typ), core.CostRole(role)
		out = append(out, e)
	}
	return out, rows.Err()
}

func headcountColumns() string {
	cols := make([]string, 12)
	for i := range cols {
		cols[i] = fmt.Sprintf("hc_%02d", i+1)
	}
	return strings.Join(cols, ", ")
}

func (r *Repository) SavePosition(ctx context.Context, p core.Position) (core.Position, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	args := []any{p.ID, p.Year, p.Title, p.AnnualGross.Cents, string(p.Role)}
	for _, n := range p.Headcount {
		args = append(args, n)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions (id, year, title, annual_gross_cents, role, `+headcountColumns()+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM positions))
		ON CONFLICT(id) DO UPDATE SET
			year = excluded.year, title = excluded.title,
			annual_gross_cents = excluded.annual_gross_cents, role = excluded.role,
			hc_01 = excluded.hc_01, hc_02 = excluded.hc_02, hc_03 = excluded.hc_03,
			hc_04 = excluded.hc_04, hc_05 = excluded.hc_05, hc_06 = excluded.hc_06,
			hc_07 = excluded.hc_07, hc_08 = excluded.hc_08, hc_09 = excluded.hc_09,
			hc_10 = excluded.hc_10, hc_11 = excluded.hc_11, hc_12 = excluded.hc_12`,
		args...)
	if err != nil {
		return p, fmt.Errorf("save position: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPositions(ctx context.Context, year int) ([]core.Position, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, year, title, annual_gross_cents, role, `+headcountColumns()+`
		 FROM positions WHERE year = ? ORDER BY seq`, year)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []core.Position
	for rows.Next() {
		var (
			p    core.Position
			role string
		)
		dest := []any{&p.ID, &p.Year, &p.Title, &p.AnnualGross.Cents, &role}
		for i := range p.Headcount {
			dest = append(dest, &p.Headcount[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.Role = core.StaffRole(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) SaveInventory(ctx context.Context, s core.InventorySnapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_snapshots (year, month, value_cents, recorded_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			value_cents = excluded.value_cents, recorded_at = excluded.recorded_at`,
		s.Year, s.Month, s.Value.Cents, formatTime(s.RecordedAt))
	if err != nil {
		return fmt.Errorf("save inventory %d-%02d: %w", s.Year, s.Month, err)
	}
	return nil
}

func (r *Repository) GetInventory(ctx context.Context, year, month int) (core.InventorySnapshot, error) {
	var (
		s  = core.InventorySnapshot{Year: year, Month: month}
		at string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT value_cents, recorded_at FROM inventory_snapshots WHERE year = ? AND month = ?`,
		year, month).Scan(&s.Value.Cents, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return core.InventorySnapshot{}, core.ErrNotFound
	}
	if err != nil {
		return core.InventorySnapshot{}, fmt.Errorf("get inventory %d-%02d: %w", year, month, err)
	}
	s.RecordedAt = parseTime(at)
	return s, nil
}

func (r *Repository) ListInventory(ctx context.Context, year int) ([]core.InventorySnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, value_cents, recorded_at FROM inventory_snapshots WHERE year = ? ORDER BY month`, year)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []core.InventorySnapshot
	for rows.Next() {
		s := core.InventorySnapshot{Year: year}
		var at string
		if err := rows.Scan(&s.Month, &s.Value.Cents, &at); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		s.RecordedAt = parseTime(at)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertMonthly(ctx context.Context, t core.MonthlyTotal) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_totals (kind, year, month, amount_cents, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, year, month) DO UPDATE SET
			amount_cents = excluded.amount_cents, updated_at = excluded.updated_at`,
		string(t.Kind), t.Year, t.Month, t.Amount.Cents, formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert monthly %s %d-%02d: %w", t.Kind, t.Year, t.Month, err)
	}
	return nil
}

func (r *Repository) ListMonthly(ctx context.Context, kind core.MonthlyKind, year int) ([]core.MonthlyTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, month, amount_cents, updated_at FROM monthly_totals
		WHERE year = ? AND (? = '' OR kind = ?)
		ORDER BY month, kind`, year, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("list monthly: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyTotal
	for rows.Next() {
		t := core.MonthlyTotal{Year: year}
		var k, at string
		if err := rows.Scan(&k, &t.Month, &t.Amount.Cents, &at); err != nil {
			return nil, fmt.Errorf("scan monthly: %w", err)
		}
		t.Kind = core.MonthlyKind(k)
		t.UpdatedAt = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// bounds turns an open range into inclusive day strings.
func bounds(r storage.DateRange) (string, string) {
	from, to := "0000-01-01", "9999-12-31"
	if !r.From.IsZero() {
		from = r.From.Format(dayLayout)
	}
	if !r.To.IsZero() {
		to = r.To.Format(dayLayout)
	}
	return from, to
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
