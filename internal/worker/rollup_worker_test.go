package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oyken/internal/amqp"
	"oyken/internal/core"
	"oyken/internal/finance"
	"oyken/internal/ledger"
	"oyken/internal/log"
	"oyken/internal/storage/memory"
)

type recordingExporter struct {
	rows []finance.EBITDARow
	err  error
}

func (r *recordingExporter) ExportMonth(_ context.Context, row finance.EBITDARow) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, row)
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishRecompute(context.Context, core.Period, string) error { return nil }

func seeded(t *testing.T) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := ledger.NewService(store, ledger.WithPublisher(noopPublisher{}), ledger.WithLogger(log.Discard()))
	d := core.NewDailySales(core.NewDate(2025, 3, 3))
	d.Sales[core.Morning] = core.Euros(300)
	require.NoError(t, svc.RecordSales(context.Background(), d))
	return svc, store
}

func TestHandleRecomputeClosesAndExports(t *testing.T) {
	svc, store := seeded(t)
	exp := &recordingExporter{}
	w := NewRollupWorker(svc, exp, log.Discard())

	msg := amqp.NewRecomputeMessage(core.Period{Year: 2025, Month: 3}, "sales")
	require.NoError(t, w.HandleRecompute(context.Background(), msg))

	rows, err := store.ListMonthly(context.Background(), core.KindSales, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, core.Euros(300), rows[0].Amount)

	require.Len(t, exp.rows, 1)
	assert.Equal(t, 3, exp.rows[0].Month)
	assert.Equal(t, core.Euros(300), exp.rows[0].Base)
}

func TestWholeYearRecomputeExportsTwelveRows(t *testing.T) {
	svc, _ := seeded(t)
	exp := &recordingExporter{}
	w := NewRollupWorker(svc, exp, log.Discard())

	require.NoError(t, w.Recompute(context.Background(), core.Period{Year: 2025}))
	assert.Len(t, exp.rows, 12)
}

func TestExportFailureIsReturned(t *testing.T) {
	svc, _ := seeded(t)
	w := NewRollupWorker(svc, &recordingExporter{err: errors.New("quota")}, log.Discard())

	err := w.Recompute(context.Background(), core.Period{Year: 2025, Month: 3})
	assert.ErrorContains(t, err, "quota")
}

func TestCloseRecentWithoutExporter(t *testing.T) {
	svc, store := seeded(t)
	w := NewRollupWorker(svc, nil, nil)

	now := time.Date(2025, 4, 2, 3, 15, 0, 0, time.UTC)
	require.NoError(t, w.CloseRecent(context.Background(), now))

	rows, err := store.ListMonthly(context.Background(), core.KindSales, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Month)
	assert.Equal(t, 4, rows[1].Month)
	assert.True(t, rows[1].Amount.IsZero())
}

func TestInvalidPeriodIsRejected(t *testing.T) {
	svc, _ := seeded(t)
	w := NewRollupWorker(svc, nil, log.Discard())
	err := w.Recompute(context.Background(), core.Period{Year: 2025, Month: 14})
	assert.ErrorIs(t, err, ledger.ErrInvalid)
}
