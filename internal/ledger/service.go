// Package ledger records the daily operating data of the restaurant, rolls it
// up into monthly totals and serves the financial reports built on them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oyken/internal/calendar"
	"oyken/internal/core"
	"oyken/internal/log"
	"oyken/internal/storage"
)

// ErrInvalid marks input rejected by validation. Callers check it with
// errors.Is; the wrapped cause carries the detail.
var ErrInvalid = errors.New("invalid input")

// Publisher announces that the rollups of a period must be recomputed.
// A period with month 0 covers the whole year.
type Publisher interface {
	PublishRecompute(ctx context.Context, p core.Period, reason string) error
}

// Service orchestrates the repository, the rollups and the reports.
type Service struct {
	repo      storage.Repository
	publisher Publisher
	strategy  calendar.Strategy
	logger    *log.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher routes recomputes through a message broker. Without one the
// service recomputes the affected months inline after each write.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithStrategy(st calendar.Strategy) Option {
	return func(s *Service) { s.strategy = st }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// WithClock overrides time.Now, used for rollup timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo storage.Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		strategy: calendar.StrategyISOWeek,
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the comparable-day strategy in use.
func (s *Service) Strategy() calendar.Strategy {
	return s.strategy
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

// RecordSales stores the daily record, replacing any earlier one for the day.
func (s *Service) RecordSales(ctx context.Context, d core.DailySales) error {
	if err := d.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.repo.UpsertSales(ctx, d); err != nil {
		return fmt.Errorf("record sales %s: %w", d.Date, err)
	}
	s.changed(ctx, "sales", d.Date.String(), core.PeriodOf(d.Date))
	return nil
}

func (s *Service) RecordPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	p.Supplier = core.NormalizeSupplier(p.Supplier)
	if err := p.Validate(); err != nil {
		return core.Purchase{}, invalid(err)
	}
	saved, err := s.repo.AddPurchase(ctx, p)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("record purchase: %w", err)
	}
	s.changed(ctx, "purchase", saved.ID, core.PeriodOf(saved.Date))
	return saved, nil
}

func (s *Service) RecordExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}
	saved, err := s.repo.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("record expense: %w", err)
	}
	s.changed(ctx, "expense", saved.ID, core.PeriodOf(saved.Date))
	return saved, nil
}

// SavePosition upserts a staff position. Headcount spans the whole year, so
// every month of that year is recomputed.
func (s *Service) SavePosition(ctx context.Context, p core.Position) (core.Position, error) {
	if err := p.Validate(); err != nil {
		return core.Position{}, invalid(err)
	}
	saved, err := s.repo.SavePosition(ctx, p)
	if err != nil {
		return core.Position{}, fmt.Errorf("save position: %w", err)
	}
	s.changed(ctx, "position", saved.ID, core.Period{Year: saved.Year})
	return saved, nil
}

// RecordInventory stores the month-end stock value. The variation of the
// following month depends on it too, so both months are recomputed. A
// December snapshot moves January of the next year.
func (s *Service) RecordInventory(ctx context.Context, snap core.InventorySnapshot) error {
	if err := snap.Validate(); err != nil {
		return invalid(err)
	}
	if snap.RecordedAt.IsZero() {
		snap.RecordedAt = s.now().UTC()
	}
	if err := s.repo.SaveInventory(ctx, snap); err != nil {
		return fmt.Errorf("record inventory: %w", err)
	}
	p := core.Period{Year: snap.Year, Month: snap.Month}
	s.changed(ctx, "inventory", p.String(), p)
	if next := p.Next(); next.Validate() == nil {
		s.changed(ctx, "inventory", p.String(), next)
	}
	return nil
}

// Sales lists the daily records of a period ordered by date.
func (s *Service) Sales(ctx context.Context, p core.Period) ([]core.DailySales, error) {
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.repo.ListSales(ctx, storage.RangeOf(p))
}

func (s *Service) Suppliers(ctx context.Context) ([]string, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) Positions(ctx context.Context, year int) ([]core.Position, error) {
	return s.repo.ListPositions(ctx, year)
}

// changed logs the write and schedules the recompute of p. Recompute
// failures never fail the write that triggered them.
func (s *Service) changed(ctx context.Context, kind, id string, p core.Period) {
	log.NewStructuredLogger(s.logger).LogRecorded(ctx, kind, id, p.Year, p.Month)

	if s.publisher != nil {
		if err := s.publisher.PublishRecompute(ctx, p, kind); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish recompute message",
				log.FieldYear, p.Year, log.FieldMonth, p.Month, log.FieldError, err)
		}
		return
	}
	if _, err := s.CloseMonth(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "Inline recompute failed",
			log.FieldYear, p.Year, log.FieldMonth, p.Month, log.FieldError, err)
	}
}
