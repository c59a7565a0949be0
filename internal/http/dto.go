package http

import (
	"github.com/shopspring/decimal"

	"oyken/internal/core"
	"oyken/internal/finance"
)

// Request bodies.

type shiftFigures struct {
	Sales   Amount `json:"sales"`
	Covers  int    `json:"covers"`
	Tickets int    `json:"tickets"`
}

type salesRequest struct {
	Date   string                      `json:"date"`
	Shifts map[core.Shift]shiftFigures `json:"shifts"`
	Notes  string                      `json:"notes"`
}

type purchaseRequest struct {
	Date     string `json:"date"`
	Supplier string `json:"supplier"`
	Family   string `json:"family"`
	Cost     Amount `json:"cost"`
}

type expenseRequest struct {
	Date     string        `json:"date"`
	Concept  string        `json:"concept"`
	Category string        `json:"category"`
	Type     core.CostType `json:"type"`
	Role     core.CostRole `json:"role"`
	Cost     Amount        `json:"cost"`
}

type positionRequest struct {
	ID          string         `json:"id"`
	Year        int            `json:"year"`
	Title       string         `json:"title"`
	AnnualGross Amount         `json:"annual_gross"`
	Role        core.StaffRole `json:"role"`
	Headcount   [12]int        `json:"headcount"`
}

type inventoryRequest struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Value Amount `json:"value"`
}

// Response bodies. Amounts are euros, percentages are ×100 with two decimals.

func euros(m core.Money) float64 { return m.Euros() }

func pct(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

func optPct(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := pct(*d)
	return &v
}

type salesView struct {
	Date          string                      `json:"date"`
	Shifts        map[core.Shift]shiftOutView `json:"shifts"`
	Total         float64                     `json:"total"`
	Tickets       int                         `json:"tickets"`
	Covers        int                         `json:"covers"`
	AverageTicket float64                     `json:"average_ticket"`
	Notes         string                      `json:"notes,omitempty"`
}

type shiftOutView struct {
	Sales   float64 `json:"sales"`
	Covers  int     `json:"covers"`
	Tickets int     `json:"tickets"`
}

func newSalesView(d core.DailySales) salesView {
	v := salesView{
		Date:          d.Date.String(),
		Shifts:        make(map[core.Shift]shiftOutView, len(core.Shifts)),
		Total:         euros(d.Total()),
		Tickets:       d.TotalTickets(),
		Covers:        d.TotalCovers(),
		AverageTicket: euros(d.AverageTicket()),
		Notes:         d.Notes,
	}
	for _, sh := range core.Shifts {
		v.Shifts[sh] = shiftOutView{Sales: euros(d.Sales[sh]), Covers: d.Covers[sh], Tickets: d.Tickets[sh]}
	}
	return v
}

type purchaseView struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Supplier string  `json:"supplier"`
	Family   string  `json:"family"`
	Cost     float64 `json:"cost"`
}

func newPurchaseView(p core.Purchase) purchaseView {
	return purchaseView{ID: p.ID, Date: p.Date.String(), Supplier: p.Supplier, Family: p.Family, Cost: euros(p.Cost)}
}

type expenseView struct {
	ID       string        `json:"id"`
	Date     string        `json:"date"`
	Concept  string        `json:"concept"`
	Category string        `json:"category"`
	Type     core.CostType `json:"type"`
	Role     core.CostRole `json:"role"`
	Cost     float64       `json:"cost"`
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{ID: e.ID, Date: e.Date.String(), Concept: e.Concept, Category: e.Category, Type: e.Type, Role: e.Role, Cost: euros(e.Cost)}
}

type positionView struct {
	ID          string         `json:"id"`
	Year        int            `json:"year"`
	Title       string         `json:"title"`
	AnnualGross float64        `json:"annual_gross"`
	Role        core.StaffRole `json:"role"`
	Headcount   [12]int        `json:"headcount"`
}

func newPositionView(p core.Position) positionView {
	return positionView{ID: p.ID, Year: p.Year, Title: p.Title, AnnualGross: euros(p.AnnualGross), Role: p.Role, Headcount: p.Headcount}
}

type monthlyView struct {
	Kind   core.MonthlyKind `json:"kind"`
	Year   int              `json:"year"`
	Month  int              `json:"month"`
	Amount float64          `json:"amount"`
}

type ebitdaRowView struct {
	Year               int     `json:"year"`
	Month              int     `json:"month,omitempty"`
	Sales              float64 `json:"sales"`
	Purchases          float64 `json:"purchases"`
	Payroll            float64 `json:"payroll"`
	Expenses           float64 `json:"expenses"`
	InventoryVariation float64 `json:"inventory_variation"`
	EBITDA             float64 `json:"ebitda"`
	AdjustedEBITDA     float64 `json:"adjusted_ebitda"`
}

func newEBITDARowView(r finance.EBITDARow) ebitdaRowView {
	return ebitdaRowView{
		Year:               r.Year,
		Month:              r.Month,
		Sales:              euros(r.Sales),
		Purchases:          euros(r.Purchases),
		Payroll:            euros(r.Payroll),
		Expenses:           euros(r.Expenses),
		InventoryVariation: euros(r.InventoryVariation),
		EBITDA:             euros(r.Base),
		AdjustedEBITDA:     euros(r.Adjusted),
	}
}

type ebitdaView struct {
	Rows  []ebitdaRowView `json:"rows"`
	Total ebitdaRowView   `json:"total"`
}

type incomeView struct {
	Year               int     `json:"year"`
	Month              int     `json:"month"`
	Sales              float64 `json:"sales"`
	Purchases          float64 `json:"purchases"`
	InventoryVariation float64 `json:"inventory_variation"`
	CostOfSales        float64 `json:"cost_of_sales"`
	GrossMargin        float64 `json:"gross_margin"`
	GrossMarginPct     float64 `json:"gross_margin_pct"`
	Payroll            float64 `json:"payroll"`
	OperatingExpenses  float64 `json:"operating_expenses"`
	OperatingResult    float64 `json:"operating_result"`
}

func newIncomeView(s finance.Statement) incomeView {
	return incomeView{
		Year:               s.Period.Year,
		Month:              s.Period.Month,
		Sales:              euros(s.Sales),
		Purchases:          euros(s.Purchases),
		InventoryVariation: euros(s.InventoryVariation),
		CostOfSales:        euros(s.CostOfSales),
		GrossMargin:        euros(s.GrossMargin),
		GrossMarginPct:     pct(s.GrossMarginPct),
		Payroll:            euros(s.Payroll),
		OperatingExpenses:  euros(s.OperatingExpenses),
		OperatingResult:    euros(s.OperatingResult),
	}
}

type categoryView struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type breakevenView struct {
	Year             int            `json:"year"`
	Month            int            `json:"month"`
	Sales            float64        `json:"sales"`
	Purchases        float64        `json:"purchases"`
	GrossMarginPct   float64        `json:"gross_margin_pct"`
	FixedPayroll     float64        `json:"fixed_payroll"`
	FixedExpenses    float64        `json:"fixed_expenses"`
	FixedTotal       float64        `json:"fixed_total"`
	FixedByCategory  []categoryView `json:"fixed_by_category"`
	VariableTotal    float64        `json:"variable_total"`
	Contribution     float64        `json:"contribution"`
	ContributionPct  float64        `json:"contribution_pct"`
	Operational      float64        `json:"operational_breakeven"`
	OperationalDaily float64        `json:"operational_daily"`
	Real             float64        `json:"real_breakeven"`
	Gap              float64        `json:"gap"`
}

func newBreakevenView(s finance.BreakevenSummary) breakevenView {
	v := breakevenView{
		Year:             s.Period.Year,
		Month:            s.Period.Month,
		Sales:            euros(s.Sales),
		Purchases:        euros(s.Purchases),
		GrossMarginPct:   pct(s.GrossMargin.Mul(decimal.NewFromInt(100))),
		FixedPayroll:     euros(s.Fixed.Payroll),
		FixedExpenses:    euros(s.Fixed.Expenses),
		FixedTotal:       euros(s.Fixed.Total),
		FixedByCategory:  []categoryView{},
		VariableTotal:    euros(s.Variable.Total),
		Contribution:     euros(s.Contribution),
		ContributionPct:  pct(s.ContributionRatio.Mul(decimal.NewFromInt(100))),
		Operational:      euros(s.Operational),
		OperationalDaily: euros(s.OperationalDaily),
		Real:             euros(s.Real),
		Gap:              euros(s.Gap),
	}
	for _, c := range s.Fixed.ByCategory {
		v.FixedByCategory = append(v.FixedByCategory, categoryView{Name: c.Name, Amount: euros(c.Amount)})
	}
	return v
}

type scenarioView struct {
	Name      string  `json:"name"`
	SalesMin  float64 `json:"sales_min"`
	SalesMax  float64 `json:"sales_max"`
	EBITDAMin float64 `json:"ebitda_min"`
	EBITDAMax float64 `json:"ebitda_max"`
}

type budgetView struct {
	TargetSales    float64        `json:"target_sales"`
	TargetEBITDA   float64        `json:"target_ebitda"`
	ExpectedEBITDA float64        `json:"expected_ebitda"`
	DeltaVsTarget  *float64       `json:"delta_vs_target,omitempty"`
	AbsorptionPct  *float64       `json:"absorption_pct,omitempty"`
	Profile        string         `json:"profile"`
	Scenarios      []scenarioView `json:"scenarios"`
}

func newBudgetView(b finance.Budget) budgetView {
	v := budgetView{
		TargetSales:    euros(b.TargetSales),
		TargetEBITDA:   euros(b.TargetEBITDA),
		ExpectedEBITDA: euros(b.ExpectedEBITDA),
		AbsorptionPct:  optPct(b.AbsorptionPct),
		Profile:        b.Profile,
		Scenarios:      []scenarioView{},
	}
	if b.DeltaVsTarget != nil {
		d := euros(*b.DeltaVsTarget)
		v.DeltaVsTarget = &d
	}
	for _, s := range b.Scenarios {
		v.Scenarios = append(v.Scenarios, scenarioView{
			Name: s.Name, SalesMin: euros(s.SalesMin), SalesMax: euros(s.SalesMax),
			EBITDAMin: euros(s.EBITDAMin), EBITDAMax: euros(s.EBITDAMax),
		})
	}
	return v
}

type varianceView struct {
	Actual float64 `json:"actual"`
	Base   float64 `json:"base"`
	Delta  float64 `json:"delta"`
	Pct    float64 `json:"pct"`
}

func newVarianceView(v finance.VarianceResult) varianceView {
	return varianceView{Actual: euros(v.Actual), Base: euros(v.Base), Delta: euros(v.Delta), Pct: pct(v.Pct)}
}

type pulseView struct {
	Date      string       `json:"date"`
	BaseDate  string       `json:"base_date"`
	Variance  varianceView `json:"variance"`
	VolumePct float64      `json:"volume_pct"`
}

type weightView struct {
	Block     int     `json:"block"`
	Label     string  `json:"label"`
	Sales     float64 `json:"sales"`
	WeightPct float64 `json:"weight_pct"`
}

type comparablesView struct {
	Date           string        `json:"date"`
	Strategy       string        `json:"strategy"`
	Pulse          []pulseView   `json:"pulse"`
	Accumulated    float64       `json:"accumulated"`
	OperatingDays  int           `json:"operating_days"`
	DailyRate      float64       `json:"daily_rate"`
	EstimatedClose float64       `json:"estimated_close"`
	DOWMonth       varianceView  `json:"dow_month"`
	RunRate        varianceView  `json:"run_rate"`
	Weights        []weightView  `json:"weights"`
	Reference      *varianceView `json:"reference,omitempty"`
}

func newComparablesView(r finance.ComparablesReport) comparablesView {
	v := comparablesView{
		Date:           r.Date.String(),
		Strategy:       string(r.Strategy),
		Pulse:          []pulseView{},
		Accumulated:    euros(r.Estimate.Accumulated),
		OperatingDays:  r.Estimate.OperatingDays,
		DailyRate:      euros(r.Estimate.DailyRate),
		EstimatedClose: euros(r.Estimate.Close),
		DOWMonth:       newVarianceView(r.DOWMonth),
		RunRate:        newVarianceView(r.RunRate.Variance),
		Weights:        []weightView{},
	}
	for _, p := range r.Pulse {
		v.Pulse = append(v.Pulse, pulseView{
			Date: p.Date.String(), BaseDate: p.BaseDate.String(),
			Variance: newVarianceView(p.Variance), VolumePct: pct(p.VolumePct),
		})
	}
	for _, w := range r.Weights {
		v.Weights = append(v.Weights, weightView{Block: w.Block, Label: w.Label, Sales: euros(w.Sales), WeightPct: pct(w.WeightPct)})
	}
	if r.Reference != nil {
		ref := newVarianceView(*r.Reference)
		v.Reference = &ref
	}
	return v
}

type weekdayView struct {
	Weekday string  `json:"weekday"`
	Mean    float64 `json:"mean"`
	Days    int     `json:"days"`
}

func newWeekdayView(w finance.WeekdayMean) weekdayView {
	return weekdayView{Weekday: w.Weekday.String(), Mean: euros(w.Mean), Days: w.Days}
}

type movingPointView struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
}

type trendsView struct {
	From               string            `json:"from"`
	To                 string            `json:"to"`
	MovingAverage7     float64           `json:"moving_average_7"`
	PrevMovingAverage7 float64           `json:"prev_moving_average_7"`
	MovingVariationPct float64           `json:"moving_variation_pct"`
	Series             []movingPointView `json:"series"`
	WeeklyCVPct        float64           `json:"weekly_cv_pct"`
	WeekOverWeekPct    float64           `json:"week_over_week_pct"`
	AverageTicket      float64           `json:"average_ticket"`
	Strongest          weekdayView       `json:"strongest"`
	Weakest            weekdayView       `json:"weakest"`
	ByWeekday          []weekdayView     `json:"by_weekday"`
	Slope14            float64           `json:"slope_14"`
	Direction          string            `json:"direction"`
	WeekendWeightPct   float64           `json:"weekend_weight_pct"`
}

func newTrendsView(t finance.TrendsReport) trendsView {
	v := trendsView{
		From:               t.From.String(),
		To:                 t.To.String(),
		MovingAverage7:     euros(t.MovingAverage7),
		PrevMovingAverage7: euros(t.PrevMovingAverage7),
		MovingVariationPct: pct(t.MovingVariationPct),
		Series:             []movingPointView{},
		WeeklyCVPct:        pct(t.WeeklyCVPct),
		WeekOverWeekPct:    pct(t.WeekOverWeekPct),
		AverageTicket:      euros(t.AverageTicket),
		Strongest:          newWeekdayView(t.Strongest),
		Weakest:            newWeekdayView(t.Weakest),
		ByWeekday:          []weekdayView{},
		Slope14:            pct(t.Slope14),
		Direction:          t.Direction,
		WeekendWeightPct:   pct(t.WeekendWeightPct),
	}
	for _, p := range t.Series {
		v.Series = append(v.Series, movingPointView{Date: p.Date.String(), Average: euros(p.Average)})
	}
	for _, w := range t.ByWeekday {
		v.ByWeekday = append(v.ByWeekday, newWeekdayView(w))
	}
	return v
}
