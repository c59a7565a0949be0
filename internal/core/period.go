package core

import (
	"fmt"
	"time"
)

const (
	KindSales              MonthlyKind = "ventas"
	KindPurchases          MonthlyKind = "compras"
	KindPayroll            MonthlyKind = "rrhh"
	KindExpenses           MonthlyKind = "gastos"
	KindInventoryVariation MonthlyKind = "inventario"
)

type MonthlyKind string

// MonthlyKinds lists the rollup tables in the order they are closed.
var MonthlyKinds = []MonthlyKind{KindSales, KindPurchases, KindPayroll, KindExpenses, KindInventoryVariation}

// Period is a (year, month) pair. Month 0 selects the whole year.
type Period struct {
	Year  int
	Month int
}

// MonthlyTotal is one row of a monthly rollup table, keyed by (Kind, Year, Month).
type MonthlyTotal struct {
	Kind      MonthlyKind
	Year      int
	Month     int
	Amount    Money
	UpdatedAt time.Time
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// PeriodOf returns the month containing d.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (p Period) Validate() error {
	if p.Year < 2000 || p.Year > 2100 {
		return ErrInvalidYear
	}
	if p.Month < 0 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// WholeYear reports whether the period covers all twelve months.
func (p Period) WholeYear() bool {
	return p.Month == 0
}

// Months returns the month numbers the period spans.
func (p Period) Months() []int {
	if p.WholeYear() {
		return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	return []int{p.Month}
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	if d.Year() != p.Year {
		return false
	}
	return p.WholeYear() || d.Month() == p.Month
}

// Previous returns the month before p. It is undefined for whole-year periods.
func (p Period) Previous() Period {
	if p.Month <= 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the month after p, rolling December over to January of the
// following year. It is undefined for whole-year periods.
func (p Period) Next() Period {
	if p.Month >= 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Start returns the first day of the period.
func (p Period) Start() Date {
	if p.WholeYear() {
		return NewDate(p.Year, 1, 1)
	}
	return NewDate(p.Year, p.Month, 1)
}

func (p Period) String() string {
	if p.WholeYear() {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (k MonthlyKind) Valid() bool {
	for _, v := range MonthlyKinds {
		if v == k {
			return true
		}
	}
	return false
}

func (t MonthlyTotal) Period() Period {
	return Period{Year: t.Year, Month: t.Month}
}

// Validate checks the key. Amounts may be negative for inventory variation.
func (t MonthlyTotal) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unknown monthly kind %q", t.Kind)
	}
	if t.Month < 1 || t.Month > 12 {
		return ErrInvalidMonth
	}
	return Period{Year: t.Year, Month: t.Month}.Validate()
}
