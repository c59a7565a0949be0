// Package sheets mirrors the closed monthly P&L into a Google Sheets
// spreadsheet, one "<year> <suffix>" tab per year and one row per month.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"oyken/internal/finance"
)

var header = []any{
	"Mes", "Ventas", "Compras", "RRHH", "Gastos",
	"Variación inventario", "EBITDA", "EBITDA ajustado", "Actualizado",
}

// Exporter writes EBITDA rows into the spreadsheet.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	suffix        string
	logger        *slog.Logger
	now           func() time.Time

	mu    sync.Mutex
	ready map[string]bool
}

// Credentials picks the service account credentials: inline JSON first,
// then the file.
func Credentials(inlineJSON, file string) (option.ClientOption, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	switch {
	case inlineJSON != "":
		return option.WithCredentialsJSON([]byte(inlineJSON)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return option.WithCredentialsJSON(data), nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// New creates an exporter. opts carry the credentials, see Credentials.
func New(ctx context.Context, spreadsheetID, suffix string, logger *slog.Logger, opts ...option.ClientOption) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if suffix == "" {
		suffix = "OYKEN"
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, option.WithScopes(gsheet.SpreadsheetsScope))
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		suffix:        suffix,
		logger:        logger,
		now:           time.Now,
		ready:         make(map[string]bool),
	}, nil
}

// SheetName returns the tab that holds year.
func (e *Exporter) SheetName(year int) string {
	return fmt.Sprintf("%d %s", year, e.suffix)
}

// ExportMonth writes row into line month+1 of the year's tab, creating the
// tab with its header first when needed. Rewriting a month overwrites it.
func (e *Exporter) ExportMonth(ctx context.Context, row finance.EBITDARow) error {
	if row.Month < 1 || row.Month > 12 {
		return fmt.Errorf("export month %d: month out of range", row.Month)
	}
	sheet := e.SheetName(row.Year)
	if err := e.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	line := row.Month + 1
	rng := fmt.Sprintf("'%s'!A%d:I%d", sheet, line, line)
	values := []any{
		row.Month,
		row.Sales.Euros(),
		row.Purchases.Euros(),
		row.Payroll.Euros(),
		row.Expenses.Euros(),
		row.InventoryVariation.Euros(),
		row.Base.Euros(),
		row.Adjusted.Euros(),
		e.now().UTC().Format(time.RFC3339),
	}
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	e.logger.InfoContext(ctx, "Exported month to Google Sheets", "range", rng)
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, sheet string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready[sheet] {
		return nil
	}

	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			e.ready[sheet] = true
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
	}}}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheet, err)
	}
	rng := fmt.Sprintf("'%s'!A1:I1", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	e.logger.InfoContext(ctx, "Created yearly sheet", "sheet", sheet)
	e.ready[sheet] = true
	return nil
}
