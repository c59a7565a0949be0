package finance

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"oyken/internal/calendar"
	"oyken/internal/core"
)

const (
	DirectionRising  = "rising"
	DirectionFalling = "falling"
	DirectionStable  = "stable"
)

// slopeThreshold is the mean daily change, in euros, above which a trend
// counts as rising or falling.
var slopeThreshold = decimal.NewFromInt(5)

// MovingPoint is the 7-day moving average ending at Date.
type MovingPoint struct {
	Date    core.Date
	Average core.Money
}

// WeekdayMean is the mean daily sales for one weekday.
type WeekdayMean struct {
	Weekday time.Weekday
	Mean    core.Money
	Days    int
}

// TrendsReport describes the direction and stability of sales.
type TrendsReport struct {
	From, To core.Date

	MovingAverage7     core.Money
	PrevMovingAverage7 core.Money
	MovingVariationPct decimal.Decimal
	Series             []MovingPoint

	WeeklyCVPct      decimal.Decimal
	WeekOverWeekPct  decimal.Decimal
	AverageTicket    core.Money
	Strongest        WeekdayMean
	Weakest          WeekdayMean
	ByWeekday        []WeekdayMean
	Slope14          decimal.Decimal
	Direction        string
	WeekendWeightPct decimal.Decimal
}

// Trends computes the trend indicators over the whole history.
func Trends(history []core.DailySales) (TrendsReport, error) {
	if len(history) == 0 {
		return TrendsReport{}, ErrNoData
	}
	days := sortedByDate(history)
	totals := make([]decimal.Decimal, len(days))
	for i, d := range days {
		totals[i] = d.Total().Decimal()
	}

	rep := TrendsReport{From: days[0].Date, To: days[len(days)-1].Date}

	last7 := mean(tail(totals, 0, 7))
	rep.MovingAverage7 = core.MoneyFromDecimal(last7)
	if len(totals) > 7 {
		prev7 := mean(tail(totals, 7, 7))
		rep.PrevMovingAverage7 = core.MoneyFromDecimal(prev7)
		if prev7.IsPositive() {
			rep.MovingVariationPct = pct(last7.Sub(prev7), prev7)
		}
	}
	for i := 6; i < len(totals); i++ {
		rep.Series = append(rep.Series, MovingPoint{
			Date:    days[i].Date,
			Average: core.MoneyFromDecimal(mean(totals[i-6 : i+1])),
		})
	}

	weekly := weeklyTotals(days)
	rep.WeeklyCVPct = coefficientOfVariation(weekly)
	if n := len(weekly); n > 1 {
		rep.WeekOverWeekPct = pct(weekly[n-1].Sub(weekly[n-2]), weekly[n-2])
	}

	var sales core.Money
	tickets := 0
	var weekend core.Money
	for _, d := range days {
		sales = sales.Add(d.Total())
		tickets += d.TotalTickets()
		if isWeekend(d.Date.Weekday()) {
			weekend = weekend.Add(d.Total())
		}
	}
	if tickets > 0 {
		rep.AverageTicket = core.MoneyFromDecimal(sales.Decimal().Div(decimal.NewFromInt(int64(tickets))))
	}
	rep.WeekendWeightPct = pct(weekend.Decimal(), sales.Decimal())

	rep.ByWeekday = weekdayMeans(days)
	rep.Strongest = rep.ByWeekday[0]
	rep.Weakest = rep.ByWeekday[len(rep.ByWeekday)-1]

	rep.Slope14 = meanDiff(tail(totals, 0, 14))
	switch {
	case rep.Slope14.GreaterThan(slopeThreshold):
		rep.Direction = DirectionRising
	case rep.Slope14.LessThan(slopeThreshold.Neg()):
		rep.Direction = DirectionFalling
	default:
		rep.Direction = DirectionStable
	}
	return rep, nil
}

// isWeekend covers Friday through Sunday.
func isWeekend(wd time.Weekday) bool {
	return wd == time.Friday || wd == time.Saturday || wd == time.Sunday
}

// tail returns up to n values ending skip positions before the end.
func tail(v []decimal.Decimal, skip, n int) []decimal.Decimal {
	end := len(v) - skip
	if end <= 0 {
		return nil
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	return v[start:end]
}

func mean(v []decimal.Decimal) decimal.Decimal {
	if len(v) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, v...).Div(decimal.NewFromInt(int64(len(v))))
}

// meanDiff is the mean of consecutive differences.
func meanDiff(v []decimal.Decimal) decimal.Decimal {
	if len(v) < 2 {
		return decimal.Zero
	}
	return v[len(v)-1].Sub(v[0]).Div(decimal.NewFromInt(int64(len(v) - 1)))
}

// weeklyTotals sums sales per ISO week, in chronological order.
func weeklyTotals(days []core.DailySales) []decimal.Decimal {
	type key struct{ year, week int }
	var order []key
	sums := make(map[key]decimal.Decimal)
	for _, d := range days {
		y, w, _ := calendar.ISO(d.Date)
		k := key{y, w}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
			sums[k] = decimal.Zero
		}
		sums[k] = sums[k].Add(d.Total().Decimal())
	}
	out := make([]decimal.Decimal, len(order))
	for i, k := range order {
		out[i] = sums[k]
	}
	return out
}

// coefficientOfVariation is sample std / mean × 100.
func coefficientOfVariation(v []decimal.Decimal) decimal.Decimal {
	if len(v) < 2 {
		return decimal.Zero
	}
	m := mean(v)
	if m.IsZero() {
		return decimal.Zero
	}
	var ss decimal.Decimal
	for _, x := range v {
		d := x.Sub(m)
		ss = ss.Add(d.Mul(d))
	}
	variance, _ := ss.Div(decimal.NewFromInt(int64(len(v) - 1))).Float64()
	std := decimal.NewFromFloat(math.Sqrt(variance))
	return pct(std, m)
}

// weekdayMeans returns mean sales per weekday, strongest first.
func weekdayMeans(days []core.DailySales) []WeekdayMean {
	sums := make(map[time.Weekday]core.Money)
	counts := make(map[time.Weekday]int)
	for _, d := range days {
		wd := d.Date.Weekday()
		sums[wd] = sums[wd].Add(d.Total())
		counts[wd]++
	}
	out := make([]WeekdayMean, 0, len(sums))
	for wd, total := range sums {
		n := counts[wd]
		out = append(out, WeekdayMean{
			Weekday: wd,
			Days:    n,
			Mean:    core.MoneyFromDecimal(total.Decimal().Div(decimal.NewFromInt(int64(n)))),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean.Cents != out[j].Mean.Cents {
			return out[i].Mean.Cents > out[j].Mean.Cents
		}
		return out[i].Weekday < out[j].Weekday
	})
	return out
}
