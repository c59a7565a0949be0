package cli

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"oyken/internal/core"
	"oyken/internal/finance"
	"oyken/internal/storage"
)

var hundred = decimal.NewFromInt(100)

type periodFlags struct {
	year  int
	month int
}

func (f *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.year, "year", 0, "year of the report (default current year)")
	cmd.Flags().IntVar(&f.month, "month", 0, "month 1-12, 0 for the whole year")
}

func (f *periodFlags) period(today core.Date) (core.Period, error) {
	p := core.Period{Year: f.year, Month: f.month}
	if p.Year == 0 {
		p.Year = today.Year()
	}
	if err := p.Validate(); err != nil {
		return core.Period{}, fmt.Errorf("period %s: %w", p, err)
	}
	return p, nil
}

// parseDateFlag reads an optional date, falling back to def when empty.
func parseDateFlag(name, value string, def core.Date) (core.Date, error) {
	if value == "" {
		return def, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func (r *runner) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a financial report",
	}
	cmd.AddCommand(
		r.reportEBITDACommand(),
		r.reportIncomeCommand(),
		r.reportBreakevenCommand(),
		r.reportBudgetCommand(),
		r.reportComparablesCommand(),
		r.reportTrendsCommand(),
	)
	return cmd
}

func (r *runner) reportEBITDACommand() *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "ebitda",
		Short: "EBITDA and adjusted EBITDA by month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			p, err := pf.period(r.today(app.Config))
			if err != nil {
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
			out = append(out, ebitdaCells("Total", total))
			return renderTable(cmd.OutOrStdout(), "EBITDA "+p.String(),
				[]string{"Mes", "Ventas", "Compras", "RRHH", "Gastos", "Var. inventario", "EBITDA", "EBITDA ajustado"},
				out)
		},
	}
	pf.register(cmd)
	return cmd
}

func ebitdaCells(label string, row finance.EBITDARow) []string {
	return []string{
		label,
		money(row.Sales),
		money(row.Purchases),
		money(row.Payroll),
		money(row.Expenses),
		money(row.InventoryVariation),
		money(row.Base),
		money(row.Adjusted),
	}
}

func (r *runner) reportIncomeCommand() *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "income",
		Short: "Income statement of a month or year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			p, err := pf.period(r.today(app.Config))
			if err != nil {
				return err
			}
			st, err := app.Ledger.IncomeStatement(cmd.Context(), p)
			if err != nil {
				return err
			}
			return renderPairs(cmd.OutOrStdout(), "Cuenta de resultados "+p.String(), [][2]string{
				{"Ventas", money(st.Sales)},
				{"Compras", money(st.Purchases)},
				{"Variación inventario", money(st.InventoryVariation)},
				{"Coste de ventas", money(st.CostOfSales)},
				{"Margen bruto", money(st.GrossMargin)},
				{"Margen bruto %", percent(st.GrossMarginPct)},
				{"RRHH", money(st.Payroll)},
				{"Gastos operativos", money(st.OperatingExpenses)},
				{"Resultado operativo", money(st.OperatingResult)},
			})
		},
	}
	pf.register(cmd)
	return cmd
}

func (r *runner) reportBreakevenCommand() *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "breakeven",
		Short: "Operational and real breakeven",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			p, err := pf.period(r.today(app.Config))
			if err != nil {
				return err
			}
			s, err := app.Ledger.Breakeven(cmd.Context(), p)
			if err != nil {
				return err
			}
			return renderPairs(cmd.OutOrStdout(), "Punto de equilibrio "+p.String(), [][2]string{
				{"Ventas", money(s.Sales)},
				{"Compras", money(s.Purchases)},
				{"Margen bruto %", percent(s.GrossMargin.Mul(hundred))},
				{"Costes fijos", money(s.Fixed.Total)},
				{"Costes variables", money(s.Variable.Total)},
				{"Margen de contribución", money(s.Contribution)},
				{"Margen de contribución %", percent(s.ContributionRatio.Mul(hundred))},
				{"Equilibrio operativo", money(s.Operational)},
				{"Equilibrio operativo diario", money(s.OperationalDaily)},
				{"Equilibrio real", money(s.Real)},
				{"Brecha", money(s.Gap)},
			})
		},
	}
	pf.register(cmd)
	return cmd
}

func (r *runner) reportBudgetCommand() *cobra.Command {
	var (
		pf                  periodFlags
		targetSales, target string
	)
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Read a sales and EBITDA target against the breakeven model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sales, err := core.ParseAmount(targetSales)
			if err != nil {
				return fmt.Errorf("--sales: %w", err)
			}
			ebitda, err := core.ParseAmount(target)
			if err != nil {
				return fmt.Errorf("--ebitda: %w", err)
			}
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			p, err := pf.period(r.today(app.Config))
			if err != nil {
				return err
			}
			b, err := app.Ledger.Budget(cmd.Context(), p, sales, ebitda)
			if err != nil {
				return err
			}
			pairs := [][2]string{
				{"Ventas objetivo", money(b.TargetSales)},
				{"EBITDA esperado", money(b.ExpectedEBITDA)},
				{"Perfil", b.Profile},
			}
			if b.DeltaVsTarget != nil {
				pairs = append(pairs, [2]string{"Desviación vs objetivo", money(*b.DeltaVsTarget)})
			}
			if b.AbsorptionPct != nil {
				pairs = append(pairs, [2]string{"Absorción de la brecha", percent(*b.AbsorptionPct)})
			}
			w := cmd.OutOrStdout()
			if err := renderPairs(w, "Presupuesto "+p.String(), pairs); err != nil {
				return err
			}
			rows := make([][]string, 0, len(b.Scenarios))
			for _, sc := range b.Scenarios {
				rows = append(rows, []string{sc.Name, money(sc.SalesMin), money(sc.SalesMax), money(sc.EBITDAMin), money(sc.EBITDAMax)})
			}
			return renderTable(w, "Escenarios",
				[]string{"Escenario", "Ventas mín.", "Ventas máx.", "EBITDA mín.", "EBITDA máx."}, rows)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&targetSales, "sales", "", "target sales in euros")
	cmd.Flags().StringVar(&target, "ebitda", "", "target EBITDA in euros")
	return cmd
}

func (r *runner) reportComparablesCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "comparables",
		Short: "Daily pulse and month-close estimate against last year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := parseDateFlag("date", date, r.today(app.Config))
			if err != nil {
				return err
			}
			rep, err := app.Ledger.Comparables(cmd.Context(), day)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			pulse := make([][]string, 0, len(rep.Pulse))
			for _, row := range rep.Pulse {
				pulse = append(pulse, []string{
					row.Date.String(),
					row.BaseDate.String(),
					money(row.Variance.Actual),
					money(row.Variance.Base),
					money(row.Variance.Delta),
					percent(row.Variance.PctRounded()),
				})
			}
			title := fmt.Sprintf("Comparables %s (%s)", day, rep.Strategy)
			if err := renderTable(w, title,
				[]string{"Día", "Comparable", "Ventas", "Año anterior", "Diferencia", "Variación"}, pulse); err != nil {
				return err
			}

			pairs := [][2]string{
				{"Acumulado", money(rep.Estimate.Accumulated)},
				{"Días operativos", strconv.Itoa(rep.Estimate.OperatingDays)},
				{"Media diaria", money(rep.Estimate.DailyRate)},
				{"Cierre estimado", money(rep.Estimate.Close)},
				{"Mes vs año anterior", percent(rep.DOWMonth.PctRounded())},
				{"Ritmo diario", money(rep.RunRate.Current)},
				{"Ritmo diario año anterior", money(rep.RunRate.Prior)},
			}
			if rep.Reference != nil {
				pairs = append(pairs, [2]string{"Día de referencia", percent(rep.Reference.PctRounded())})
			}
			for _, bw := range rep.Weights {
				pairs = append(pairs, [2]string{"Peso " + bw.Label, percent(bw.WeightPct)})
			}
			return renderPairs(w, "", pairs)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference day, YYYY-MM-DD (default today)")
	return cmd
}

func (r *runner) reportTrendsCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Moving averages, stability and weekday profile of sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng := storage.DateRange{}
			var err error
			if rng.From, err = parseDateFlag("from", from, core.Date{}); err != nil {
				return err
			}
			if rng.To, err = parseDateFlag("to", to, core.Date{}); err != nil {
				return err
			}
			if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From.Time) {
				return fmt.Errorf("--to must not be before --from")
			}

			app, err := r.boot(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			rep, err := app.Ledger.Trends(cmd.Context(), rng)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := renderPairs(w, fmt.Sprintf("Tendencias %s / %s", rep.From, rep.To), [][2]string{
				{"Media móvil 7 días", money(rep.MovingAverage7)},
				{"Media móvil anterior", money(rep.PrevMovingAverage7)},
				{"Variación media móvil", percent(rep.MovingVariationPct)},
				{"Coeficiente de variación semanal", percent(rep.WeeklyCVPct)},
				{"Semana contra semana", percent(rep.WeekOverWeekPct)},
				{"Ticket medio", money(rep.AverageTicket)},
				{"Pendiente 14 días", rep.Slope14.StringFixed(2)},
				{"Dirección", rep.Direction},
				{"Peso fin de semana", percent(rep.WeekendWeightPct)},
			}); err != nil {
				return err
			}
			rows := make([][]string, 0, len(rep.ByWeekday))
			for _, wd := range rep.ByWeekday {
				rows = append(rows, []string{wd.Weekday.String(), money(wd.Mean), strconv.Itoa(wd.Days)})
			}
			return renderTable(w, "", []string{"Día", "Media", "Días"}, rows)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	return cmd
}
