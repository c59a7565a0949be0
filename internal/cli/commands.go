package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"oyken/internal/backend"
	"oyken/internal/core"
	"oyken/internal/export/xlsx"
	"oyken/internal/log"
	"oyken/internal/storage/sqlite"
	"oyken/internal/worker"
)

func (r *runner) closeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close YEAR [MONTH]",
		Short: "Recompute the monthly totals of a month or a whole year",
		Long: `Recompute the monthly rollups (sales, purchases, payroll, expenses and
inventory variation) of a month, or of every month of YEAR when MONTH is
omitted. The closed months are pushed to Google Sheets when configured.`,
		Example: "  oyken close 2025 3\n  oyken close 2024",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodArgs(args)
			if err != nil {
				return err
			}
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			exporter, err := app.Exporter(cmd.Context())
			if err != nil {
				return err
			}
			w := worker.NewRollupWorker(app.Ledger, exporter, app.Logger)
			if err := w.Recompute(cmd.Context(), p); err != nil {
				return err
			}
			rows, total, err := app.Ledger.EBITDA(cmd.Context(), p)
			if err != nil {
				return err
			}
			out := make([][]string, 0, len(rows)+1)
			for _, row := range rows {
				out = append(out, ebitdaCells(core.Period{Year: row.Year, Month: row.Month}.String(), row))
			}
			if len(rows) > 1 {
				out = append(out, ebitdaCells("Total", total))
			}
			return renderTable(cmd.OutOrStdout(), "Cerrado "+p.String(),
				[]string{"Mes", "Ventas", "Compras", "RRHH", "Gastos", "Var. inventario", "EBITDA", "EBITDA ajustado"},
				out)
		},
	}
}

func periodArgs(args []string) (core.Period, error) {
	var p core.Period
	var err error
	if p.Year, err = strconv.Atoi(args[0]); err != nil {
		return p, fmt.Errorf("year %q: %w", args[0], core.ErrInvalidYear)
	}
	if len(args) > 1 {
		if p.Month, err = strconv.Atoi(args[1]); err != nil || p.Month < 1 {
			return p, fmt.Errorf("month %q: %w", args[1], core.ErrInvalidMonth)
		}
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("period %s: %w", p, err)
	}
	return p, nil
}

func (r *runner) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports to a workbook or to Google Sheets",
	}
	cmd.AddCommand(r.exportXLSXCommand(), r.exportSheetsCommand())
	return cmd
}

func (r *runner) exportXLSXCommand() *cobra.Command {
	var (
		year int
		date string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Write the yearly EBITDA, breakeven and comparables workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			today := r.today(app.Config)
			if year == 0 {
				year = today.Year()
			}
			if err := (core.Period{Year: year}).Validate(); err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
			day, err := parseDateFlag("date", date, today)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("oyken-%d.xlsx", year)
			}
			if err := xlsx.WriteFile(cmd.Context(), out, app.Ledger, year, day); err != nil {
				return err
			}
			app.Logger.Info("Workbook written", log.FieldOperation, log.OpExport, log.FieldYear, year, "path", out)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year of the workbook (default current year)")
	cmd.Flags().StringVar(&date, "date", "", "reference day of the comparables sheet (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default oyken-YEAR.xlsx)")
	return cmd
}

func (r *runner) exportSheetsCommand() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Push the closed months of a year to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			exporter, err := app.Exporter(cmd.Context())
			if err != nil {
				return err
			}
			if exporter == nil {
				return errors.New("google sheets export is not configured: set GOOGLE_SPREADSHEET_ID")
			}
			if year == 0 {
				year = r.today(app.Config).Year()
			}
			p := core.Period{Year: year}
			if err := p.Validate(); err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
			rows, _, err := app.Ledger.EBITDA(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if err := exporter.ExportMonth(cmd.Context(), row); err != nil {
					return fmt.Errorf("export %04d-%02d: %w", row.Year, row.Month, err)
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d months of %d\n", len(rows), year)
			return err
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to export (default current year)")
	return cmd
}

func (r *runner) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade stored data to the current schema",
		Long: `Upgrade stored data in place. SQLite databases run the pending schema
migrations; CSV tables written by older versions are rewritten with the
current headers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := r.config(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			switch backend.BackendType(cfg.DataBackend) {
			case backend.SQLiteBackend:
				version, err := sqlite.RunMigrations(cfg.SQLiteDBPath)
				if err != nil {
					return err
				}
				logger.Info("SQLite migrations applied", log.FieldOperation, log.OpMigrate, "schema_version", version)
				_, err = fmt.Fprintf(w, "sqlite schema at version %d\n", version)
				return err
			case backend.MemoryBackend:
				_, err := fmt.Fprintln(w, "memory backend has nothing to migrate")
				return err
			}

			app, err := Bootstrap(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer app.Close()

			m, ok := app.Repo.(backend.Migrator)
			if !ok {
				return fmt.Errorf("%s backend does not support migrations", cfg.DataBackend)
			}
			files, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				_, err = fmt.Fprintln(w, "csv tables already up to date")
				return err
			}
			for _, f := range files {
				if _, err := fmt.Fprintln(w, "migrated", f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
