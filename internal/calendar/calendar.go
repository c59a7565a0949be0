// Package calendar resolves comparable periods: ISO weeks, prior-year
// weekday matches and month lengths.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"oyken/internal/core"
)

// ErrNoHistoricalMatch is returned when no prior-year record shares the weekday.
var ErrNoHistoricalMatch = errors.New("no historical match")

// Strategy selects how the prior-year comparable day is located.
type Strategy string

const (
	// StrategyISOWeek picks the day with the same ISO week and weekday.
	StrategyISOWeek Strategy = "iso_week"
	// StrategySameMonthWeekday picks the first day in the same month of the
	// prior year that falls on the same weekday.
	StrategySameMonthWeekday Strategy = "same_month_weekday"
)

// ParseStrategy maps a config value to a Strategy. Empty means StrategyISOWeek.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyISOWeek:
		return StrategyISOWeek, nil
	case StrategySameMonthWeekday:
		return StrategySameMonthWeekday, nil
	}
	return "", fmt.Errorf("unknown comparable strategy %q", s)
}

// ISO returns the ISO year, ISO week and weekday (1=Monday … 7=Sunday).
func ISO(d core.Date) (year, week, weekday int) {
	year, week = d.ISOWeek()
	return year, week, ISOWeekday(d)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(d core.Date) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// FromISO returns the date for the given ISO year, week and weekday.
func FromISO(year, week, weekday int) core.Date {
	// Jan 4 is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := int(jan4.Weekday())
	if offset == 0 {
		offset = 7
	}
	monday := jan4.AddDate(0, 0, 1-offset)
	return core.DateOf(monday.AddDate(0, 0, (week-1)*7+weekday-1))
}

// WeeksInISOYear returns 52 or 53.
func WeeksInISOYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// SameISOWeekdayLastYear returns the day in the previous ISO year with the
// same ISO week and weekday. Week 53 maps to week 52 when the previous year
// has no week 53.
func SameISOWeekdayLastYear(d core.Date) core.Date {
	year, week, weekday := ISO(d)
	prev := year - 1
	if week > WeeksInISOYear(prev) {
		week = WeeksInISOYear(prev)
	}
	return FromISO(prev, week, weekday)
}

// FindComparable locates the prior-year record for d in history. The
// returned record always shares d's weekday.
func FindComparable(d core.Date, history []core.DailySales, strategy Strategy) (core.DailySales, error) {
	switch strategy {
	case "", StrategyISOWeek:
		target := SameISOWeekdayLastYear(d)
		for _, h := range history {
			if h.Date.Equal(target.Time) {
				return h, nil
			}
		}
	case StrategySameMonthWeekday:
		candidates := make([]core.DailySales, 0, 5)
		for _, h := range history {
			if h.Date.Year() == d.Year()-1 && h.Date.Month() == d.Month() && h.Date.Weekday() == d.Weekday() {
				candidates = append(candidates, h)
			}
		}
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].Date.Before(candidates[j].Date.Time) })
			return candidates[0], nil
		}
	default:
		return core.DailySales{}, fmt.Errorf("unknown comparable strategy %q", strategy)
	}
	return core.DailySales{}, fmt.Errorf("%s: %w", d, ErrNoHistoricalMatch)
}

// DaysInMonth returns the number of calendar days in the month. Month 0
// returns the days in the whole year.
func DaysInMonth(year, month int) int {
	if month == 0 {
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Quarter4 returns the four-month block (1: Jan–Apr, 2: May–Aug, 3: Sep–Dec).
func Quarter4(month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	return (month-1)/4 + 1
}

// Quarter4Months returns the months of a four-month block.
func Quarter4Months(block int) []int {
	if block < 1 || block > 3 {
		return nil
	}
	start := (block-1)*4 + 1
	return []int{start, start + 1, start + 2, start + 3}
}
