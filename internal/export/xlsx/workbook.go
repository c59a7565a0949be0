// Package xlsx writes the yearly report workbook: EBITDA by month, the
// breakeven chain and the comparables of a reference day.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"oyken/internal/core"
	"oyken/internal/finance"
)

const (
	SheetEBITDA      = "EBITDA"
	SheetBreakeven   = "Breakeven"
	SheetComparables = "Comparables"

	// Built-in number format "#,##0.00".
	numFmtMoney = 4
)

// Source is the part of the ledger the workbook reads.
type Source interface {
	EBITDA(ctx context.Context, p core.Period) ([]finance.EBITDARow, finance.EBITDARow, error)
	Breakeven(ctx context.Context, p core.Period) (finance.BreakevenSummary, error)
	Comparables(ctx context.Context, day core.Date) (finance.ComparablesReport, error)
}

type builder struct {
	f      *excelize.File
	header int
	money  int
}

// Build assembles the workbook of year with comparables for day. The caller
// closes the returned file.
func Build(ctx context.Context, src Source, year int, day core.Date) (*excelize.File, error) {
	f := excelize.NewFile()
	b := &builder{f: f}
	var err error
	if b.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		f.Close()
		return nil, err
	}
	if b.money, err = f.NewStyle(&excelize.Style{NumFmt: numFmtMoney}); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", SheetEBITDA); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetBreakeven, SheetComparables} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	steps := []func() error{
		func() error { return b.ebitda(ctx, src, year) },
		func() error { return b.breakeven(ctx, src, year) },
		func() error { return b.comparables(ctx, src, day) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(ctx context.Context, w io.Writer, src Source, year int, day core.Date) error {
	f, err := Build(ctx, src, year, day)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// WriteFile builds the workbook and saves it at path.
func WriteFile(ctx context.Context, path string, src Source, year int, day core.Date) error {
	f, err := Build(ctx, src, year, day)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func (b *builder) row(sheet string, n int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	return b.f.SetSheetRow(sheet, cell, &values)
}

func (b *builder) headerRow(sheet string, n int, titles ...any) error {
	if err := b.row(sheet, n, titles...); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), n)
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, n)
	return b.f.SetCellStyle(sheet, first, last, b.header)
}

func (b *builder) moneyColumns(sheet string, fromCol, toCol, fromRow, toRow int) error {
	first, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		return err
	}
	return b.f.SetCellStyle(sheet, first, last, b.money)
}

func (b *builder) ebitda(ctx context.Context, src Source, year int) error {
	rows, total, err := src.EBITDA(ctx, core.Period{Year: year})
	if err != nil {
		return fmt.Errorf("ebitda sheet: %w", err)
	}
	if err := b.headerRow(SheetEBITDA, 1, "Mes", "Ventas", "Compras", "RRHH", "Gastos",
		"Variación inventario", "EBITDA", "EBITDA ajustado"); err != nil {
		return err
	}
	n := 2
	for _, r := range append(rows, total) {
		label := any(r.Month)
		if r.Month == 0 {
			label = "Total"
		}
		if err := b.row(SheetEBITDA, n, label, r.Sales.Euros(), r.Purchases.Euros(), r.Payroll.Euros(),
			r.Expenses.Euros(), r.InventoryVariation.Euros(), r.Base.Euros(), r.Adjusted.Euros()); err != nil {
			return err
		}
		n++
	}
	return b.moneyColumns(SheetEBITDA, 2, 8, 2, n-1)
}

func (b *builder) breakeven(ctx context.Context, src Source, year int) error {
	if err := b.headerRow(SheetBreakeven, 1, "Periodo", "Ventas", "Compras", "Margen bruto %",
		"Costes fijos", "Costes variables", "Margen contribución %", "PE operativo",
		"PE operativo diario", "PE real", "Brecha", "Nota"); err != nil {
		return err
	}
	periods := make([]core.Period, 0, 13)
	for m := 1; m <= 12; m++ {
		periods = append(periods, core.Period{Year: year, Month: m})
	}
	periods = append(periods, core.Period{Year: year})

	n := 2
	for _, p := range periods {
		s, err := src.Breakeven(ctx, p)
		switch {
		case errors.Is(err, finance.ErrNoSales), errors.Is(err, finance.ErrNonPositiveMargin):
			err = b.row(SheetBreakeven, n, p.String(), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, err.Error())
		case err != nil:
			return fmt.Errorf("breakeven sheet %s: %w", p, err)
		default:
			err = b.row(SheetBreakeven, n, p.String(), s.Sales.Euros(), s.Purchases.Euros(),
				percent(s.GrossMargin.Mul(decimal.NewFromInt(100))), s.Fixed.Total.Euros(), s.Variable.Total.Euros(),
				percent(s.ContributionRatio.Mul(decimal.NewFromInt(100))), s.Operational.Euros(),
				s.OperationalDaily.Euros(), s.Real.Euros(), s.Gap.Euros())
		}
		if err != nil {
			return err
		}
		n++
	}
	return b.moneyColumns(SheetBreakeven, 2, 11, 2, n-1)
}

func (b *builder) comparables(ctx context.Context, src Source, day core.Date) error {
	rep, err := src.Comparables(ctx, day)
	if errors.Is(err, finance.ErrNoData) {
		return b.row(SheetComparables, 1, "Sin ventas registradas en el mes de "+day.String())
	}
	if err != nil {
		return fmt.Errorf("comparables sheet: %w", err)
	}

	summary := [][]any{
		{"Fecha", rep.Date.String()},
		{"Estrategia", string(rep.Strategy)},
		{"Acumulado mes", rep.Estimate.Accumulated.Euros()},
		{"Media diaria", rep.Estimate.DailyRate.Euros()},
		{"Cierre estimado", rep.Estimate.Close.Euros()},
		{"Mes actual (DOW)", rep.DOWMonth.Actual.Euros()},
		{"Mes anterior (DOW)", rep.DOWMonth.Base.Euros()},
		{"Variación DOW %", percent(rep.DOWMonth.PctRounded())},
		{"Run rate variación %", percent(rep.RunRate.Variance.PctRounded())},
	}
	n := 1
	for _, r := range summary {
		if err := b.row(SheetComparables, n, r...); err != nil {
			return err
		}
		n++
	}

	n++
	if err := b.headerRow(SheetComparables, n, "Fecha", "Fecha base", "Ventas", "Base", "Diferencia", "Variación %", "Volumen %"); err != nil {
		return err
	}
	n++
	for _, p := range rep.Pulse {
		if err := b.row(SheetComparables, n, p.Date.String(), p.BaseDate.String(), p.Variance.Actual.Euros(),
			p.Variance.Base.Euros(), p.Variance.Delta.Euros(), percent(p.Variance.PctRounded()),
			percent(p.VolumePct.Round(2))); err != nil {
			return err
		}
		n++
	}

	n++
	if err := b.headerRow(SheetComparables, n, "Cuatrimestre", "Ventas", "Peso %"); err != nil {
		return err
	}
	n++
	for _, w := range rep.Weights {
		if err := b.row(SheetComparables, n, w.Label, w.Sales.Euros(), percent(w.WeightPct.Round(2))); err != nil {
			return err
		}
		n++
	}
	return nil
}

func percent(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
