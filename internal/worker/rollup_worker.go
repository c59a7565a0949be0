package worker

import (
	"context"
	"fmt"
	"time"

	"oyken/internal/amqp"
	"oyken/internal/core"
	"oyken/internal/finance"
	"oyken/internal/log"
)

// Ledger is the part of the ledger service the worker drives.
type Ledger interface {
	CloseMonth(ctx context.Context, p core.Period) ([]core.MonthlyTotal, error)
	EBITDA(ctx context.Context, p core.Period) ([]finance.EBITDARow, finance.EBITDARow, error)
}

// MonthExporter receives each closed month, e.g. the Google Sheets export.
type MonthExporter interface {
	ExportMonth(ctx context.Context, row finance.EBITDARow) error
}

// RollupWorker closes months on request and pushes the closed rows to the
// exporter when one is configured.
type RollupWorker struct {
	ledger   Ledger
	exporter MonthExporter
	logger   *log.Logger
}

// NewRollupWorker creates a worker. exporter may be nil.
func NewRollupWorker(ledger Ledger, exporter MonthExporter, logger *log.Logger) *RollupWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RollupWorker{
		ledger:   ledger,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecompute processes a single recompute message from AMQP.
func (w *RollupWorker) HandleRecompute(ctx context.Context, msg *amqp.RecomputeMessage) error {
	w.logger.InfoContext(ctx, "Processing recompute message",
		log.FieldYear, msg.Year,
		log.FieldMonth, msg.Month,
		"reason", msg.Reason,
		"queued_for", time.Since(msg.Timestamp).Round(time.Millisecond))
	return w.Recompute(ctx, msg.Period())
}

// Recompute closes p and exports its rows.
func (w *RollupWorker) Recompute(ctx context.Context, p core.Period) error {
	if _, err := w.ledger.CloseMonth(ctx, p); err != nil {
		return fmt.Errorf("close %s: %w", p, err)
	}
	if w.exporter == nil {
		return nil
	}

	rows, _, err := w.ledger.EBITDA(ctx, p)
	if err != nil {
		return fmt.Errorf("read closed rows %s: %w", p, err)
	}
	for _, row := range rows {
		if err := w.exporter.ExportMonth(ctx, row); err != nil {
			return fmt.Errorf("export %04d-%02d: %w", row.Year, row.Month, err)
		}
	}
	w.logger.InfoContext(ctx, "Exported closed months",
		log.FieldOperation, log.OpExport, log.FieldYear, p.Year, log.FieldMonth, p.Month, "rows", len(rows))
	return nil
}

// CloseRecent closes the month containing now and the one before it, which
// late entries still touch.
func (w *RollupWorker) CloseRecent(ctx context.Context, now time.Time) error {
	cur := core.PeriodOf(core.DateOf(now))
	for _, p := range []core.Period{cur.Previous(), cur} {
		if err := w.Recompute(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
