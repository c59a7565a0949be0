package finance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"oyken/internal/calendar"
	"oyken/internal/core"
)

// closeMultiplier projects a daily rate to a month close.
const closeMultiplier = 30

// PulseRow compares one day of the current month with its prior-year comparable.
type PulseRow struct {
	Date     core.Date
	BaseDate core.Date
	Variance VarianceResult
	// VolumePct is the day's sales relative to the best day in the pulse.
	VolumePct decimal.Decimal
}

// DailyPulse matches each current record with its prior-year comparable.
// Days without a comparable, or whose comparable has no sales, are skipped.
func DailyPulse(current, history []core.DailySales, strategy calendar.Strategy) ([]PulseRow, error) {
	current = sortedByDate(current)
	rows := make([]PulseRow, 0, len(current))
	var best core.Money
	for _, day := range current {
		ref, err := calendar.FindComparable(day.Date, history, strategy)
		if errors.Is(err, calendar.ErrNoHistoricalMatch) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ref.Total().Cents <= 0 {
			continue
		}
		rows = append(rows, PulseRow{
			Date:     day.Date,
			BaseDate: ref.Date,
			Variance: Variance(day.Total(), ref.Total()),
		})
		if day.Total().Cents > best.Cents {
			best = day.Total()
		}
	}
	for i := range rows {
		rows[i].VolumePct = pct(rows[i].Variance.Actual.Decimal(), best.Decimal())
	}
	return rows, nil
}

// CloseEstimate projects the month close from the accumulated sales.
type CloseEstimate struct {
	Accumulated   core.Money
	OperatingDays int
	DailyRate     core.Money
	Close         core.Money
}

// MonthCloseEstimate is accumulated/operatingDays × 30.
func MonthCloseEstimate(accumulated core.Money, operatingDays int) (CloseEstimate, error) {
	if operatingDays <= 0 {
		return CloseEstimate{}, fmt.Errorf("operating days %d: %w", operatingDays, ErrNoData)
	}
	rate := accumulated.Decimal().Div(decimal.NewFromInt(int64(operatingDays)))
	return CloseEstimate{
		Accumulated:   accumulated,
		OperatingDays: operatingDays,
		DailyRate:     core.MoneyFromDecimal(rate),
		Close:         core.MoneyFromDecimal(rate.Mul(decimal.NewFromInt(closeMultiplier))),
	}, nil
}

// DOWMonthComparison compares the current month so far with the first
// len(current) recorded days of the same month last year.
func DOWMonthComparison(current, prior []core.DailySales) VarianceResult {
	prior = sortedByDate(prior)
	if len(prior) > len(current) {
		prior = prior[:len(current)]
	}
	return Variance(totalSales(current), totalSales(prior))
}

// RunRateResult compares the average daily sales of two periods.
type RunRateResult struct {
	Current  core.Money
	Prior    core.Money
	Variance VarianceResult
}

// RunRate divides both accumulated figures by the same number of days.
func RunRate(current, prior core.Money, days int) RunRateResult {
	if days <= 0 {
		return RunRateResult{}
	}
	n := decimal.NewFromInt(int64(days))
	cur := core.MoneyFromDecimal(current.Decimal().Div(n))
	prev := core.MoneyFromDecimal(prior.Decimal().Div(n))
	return RunRateResult{Current: cur, Prior: prev, Variance: Variance(cur, prev)}
}

// BlockWeight is the share of annual sales in a four-month block.
type BlockWeight struct {
	Block     int
	Label     string
	Sales     core.Money
	WeightPct decimal.Decimal
}

var blockLabels = [...]string{"", "Jan–Apr", "May–Aug", "Sep–Dec"}

// FourMonthWeights splits the year's sales into the three four-month blocks.
func FourMonthWeights(year int, records []core.DailySales) []BlockWeight {
	out := make([]BlockWeight, 3)
	var total core.Money
	for i := range out {
		out[i] = BlockWeight{Block: i + 1, Label: blockLabels[i+1]}
	}
	for _, r := range records {
		if r.Date.Year() != year {
			continue
		}
		b := calendar.Quarter4(r.Date.Month())
		out[b-1].Sales = out[b-1].Sales.Add(r.Total())
		total = total.Add(r.Total())
	}
	for i := range out {
		out[i].WeightPct = pct(out[i].Sales.Decimal(), total.Decimal()).Round(1)
	}
	return out
}

// ComparablesReport is the comparables view for a reference day.
type ComparablesReport struct {
	Date      core.Date
	Strategy  calendar.Strategy
	Pulse     []PulseRow
	Estimate  CloseEstimate
	DOWMonth  VarianceResult
	RunRate   RunRateResult
	Weights   []BlockWeight
	Reference *VarianceResult
}

// Comparables builds the comparables view for today from the full history.
// Only records of today's month up to today count as current.
func Comparables(today core.Date, history []core.DailySales, strategy calendar.Strategy) (ComparablesReport, error) {
	var current, prior []core.DailySales
	for _, r := range history {
		switch {
		case r.Date.Year() == today.Year() && r.Date.Month() == today.Month() && !r.Date.After(today.Time):
			current = append(current, r)
		case r.Date.Year() == today.Year()-1 && r.Date.Month() == today.Month():
			prior = append(prior, r)
		}
	}
	if len(current) == 0 {
		return ComparablesReport{}, fmt.Errorf("comparables for %s: %w", today, ErrNoData)
	}

	rep := ComparablesReport{Date: today, Strategy: strategy}
	var err error
	if rep.Pulse, err = DailyPulse(current, history, strategy); err != nil {
		return rep, err
	}
	accumulated := totalSales(current)
	if rep.Estimate, err = MonthCloseEstimate(accumulated, today.Day()); err != nil {
		return rep, err
	}
	rep.DOWMonth = DOWMonthComparison(current, prior)
	rep.RunRate = RunRate(accumulated, rep.DOWMonth.Base, today.Day())
	rep.Weights = FourMonthWeights(today.Year(), history)

	for _, r := range current {
		if r.Date.Equal(today.Time) {
			if ref, err := calendar.FindComparable(today, history, strategy); err == nil {
				v := Variance(r.Total(), ref.Total())
				rep.Reference = &v
			}
		}
	}
	return rep, nil
}

func totalSales(records []core.DailySales) core.Money {
	var total core.Money
	for _, r := range records {
		total = total.Add(r.Total())
	}
	return total
}

func sortedByDate(records []core.DailySales) []core.DailySales {
	out := make([]core.DailySales, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}
