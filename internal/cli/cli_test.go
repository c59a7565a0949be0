package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"oyken/internal/core"
	"oyken/internal/log"
	"oyken/internal/storage/csvstore"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// isolateEnv clears the variables that would point the commands at a real
// broker, spreadsheet or config file.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DATA_BACKEND", "OYKEN_DATA_DIR", "SQLITE_DB_PATH",
		"AMQP_URL", "GOOGLE_SPREADSHEET_ID", "GOOGLE_SERVICE_ACCOUNT_JSON",
		"GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"OYKEN_CONFIG_FILE", "OYKEN_TZ", "COMPARABLE_STRATEGY",
	} {
		t.Setenv(key, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(func() time.Time { return testNow })
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedCSV(t *testing.T) (string, *csvstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := csvstore.New(dir, log.Discard().Slog())
	require.NoError(t, err)

	ctx := context.Background()
	day := core.NewDailySales(core.NewDate(2025, 3, 3))
	day.Sales[core.Morning] = core.Euros(200)
	day.Tickets[core.Morning] = 5
	require.NoError(t, store.UpsertSales(ctx, day))

	_, err = store.AddPurchase(ctx, core.Purchase{
		Date:     core.NewDate(2025, 3, 5),
		Supplier: "Makro",
		Family:   "Materia prima",
		Cost:     core.Euros(80),
	})
	require.NoError(t, err)
	return dir, store
}

func TestCloseAndReport(t *testing.T) {
	isolateEnv(t)
	dir, store := seedCSV(t)
	flags := []string{"--log-level", "error", "--backend", "csv", "--data-dir", dir}

	out, err := run(t, append([]string{"close", "2025", "3"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03")
	assert.Contains(t, out, "200.00")
	assert.Contains(t, out, "120.00")

	totals, err := store.ListMonthly(context.Background(), core.KindSales, 2025)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 3, totals[0].Month)
	assert.Equal(t, core.Euros(200), totals[0].Amount)

	t.Run("ebitda", func(t *testing.T) {
		out, err := run(t, append([]string{"report", "ebitda", "--month", "3"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "EBITDA 2025-03")
		assert.Contains(t, out, "120.00")
	})

	t.Run("income", func(t *testing.T) {
		out, err := run(t, append([]string{"report", "income", "--year", "2025", "--month", "3"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "Margen bruto")
		assert.Contains(t, out, "60.0 %")
	})

	t.Run("trends", func(t *testing.T) {
		out, err := run(t, append([]string{"report", "trends", "--from", "2025-03-01", "--to", "2025-03-31"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "Ticket medio")
		assert.Contains(t, out, "40.00")
	})

	t.Run("breakeven without fixed costs", func(t *testing.T) {
		_, err := run(t, append([]string{"report", "breakeven", "--year", "2024", "--month", "1"}, flags...)...)
		assert.Error(t, err)
	})
}

func TestCloseRejectsBadPeriod(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "close", "2025", "13", "--backend", "memory")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidMonth))

	_, err = run(t, "close")
	assert.Error(t, err)
}

func TestPeriodArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    core.Period
		wantErr error
	}{
		{name: "whole year", args: []string{"2025"}, want: core.Period{Year: 2025}},
		{name: "month", args: []string{"2025", "3"}, want: core.Period{Year: 2025, Month: 3}},
		{name: "month zero", args: []string{"2025", "0"}, wantErr: core.ErrInvalidMonth},
		{name: "month out of range", args: []string{"2025", "13"}, wantErr: core.ErrInvalidMonth},
		{name: "year not a number", args: []string{"twenty"}, wantErr: core.ErrInvalidYear},
		{name: "year out of range", args: []string{"1999"}, wantErr: core.ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := periodArgs(tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportXLSX(t *testing.T) {
	isolateEnv(t)
	dir, _ := seedCSV(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")

	out, err := run(t, "export", "xlsx", "--year", "2025", "--date", "2025-03-03",
		"--out", path, "--backend", "csv", "--data-dir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "EBITDA")
}

func TestExportSheetsRequiresSpreadsheet(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "export", "sheets", "--backend", "memory", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestMigrate(t *testing.T) {
	isolateEnv(t)

	t.Run("memory", func(t *testing.T) {
		out, err := run(t, "migrate", "--backend", "memory")
		require.NoError(t, err)
		assert.Contains(t, out, "nothing to migrate")
	})

	t.Run("fresh csv directory", func(t *testing.T) {
		out, err := run(t, "migrate", "--backend", "csv", "--data-dir", t.TempDir(), "--log-level", "error")
		require.NoError(t, err)
		assert.Contains(t, out, "already up to date")
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "oyken.db")
		out, err := run(t, "migrate", "--backend", "sqlite", "--sqlite-path", path, "--log-level", "error")
		require.NoError(t, err)
		assert.Contains(t, out, "sqlite schema at version")
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestInvalidConfiguration(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "report", "ebitda", "--backend", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data backend")

	_, err = run(t, "report", "ebitda", "--backend", "memory", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
