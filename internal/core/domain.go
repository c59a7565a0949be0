package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Morning   Shift = "morning"
	Afternoon Shift = "afternoon"
	Night     Shift = "night"
)

const (
	Fixed    CostType = "Fijo"
	Variable CostType = "Variable"
)

const (
	Structural  CostRole = "Estructural"
	Operational CostRole = "Operativo"
)

const (
	StaffMinimum    StaffRole = "Estructural mínimo"
	StaffExpandable StaffRole = "Estructural ampliable"
	StaffReinforce  StaffRole = "Refuerzo operativo"
)

// EmployerSocialSecurity is the employer contribution applied on top of gross payroll.
const EmployerSocialSecurity = 0.33

type (
	Shift     string
	CostType  string
	CostRole  string
	StaffRole string

	Date struct {
		time.Time
	}

	// DailySales is the one-per-day operating record.
	DailySales struct {
		Date    Date
		Sales   map[Shift]Money
		Covers  map[Shift]int
		Tickets map[Shift]int
		Notes   string
	}

	Purchase struct {
		ID       string
		Date     Date
		Supplier string
		Family   string
		Cost     Money
	}

	Expense struct {
		ID       string
		Date     Date
		Concept  string
		Category string
		Type     CostType
		Role     CostRole
		Cost     Money
	}

	// Position is a planned HR role for a year with monthly headcount.
	Position struct {
		ID          string
		Year        int
		Title       string
		AnnualGross Money
		Role        StaffRole
		Headcount   [12]int
	}

	InventorySnapshot struct {
		Year       int
		Month      int
		Value      Money
		RecordedAt time.Time
	}
)

var Shifts = []Shift{Morning, Afternoon, Night}

var PurchaseFamilies = []string{"Materia prima", "Bebidas", "Limpieza", "Otros"}

var ExpenseCategories = []string{
	"Alquiler",
	"Suministros",
	"Mantenimiento",
	"Servicios profesionales",
	"Bancos y Medios de pago",
	"Tecnología y Plataformas",
	"Marqueting y Comunicación",
	"Limpieza y Lavandería",
	"Uniformes y utensilios",
	"Vigilancia y Seguridad",
	"otros Gastos operativos",
}

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrEmptyConcept     = errors.New("empty concept")
	ErrEmptySupplier    = errors.New("empty supplier")
	ErrEmptyTitle       = errors.New("empty position title")
	ErrUnknownCategory  = errors.New("unknown expense category")
	ErrUnknownFamily    = errors.New("unknown purchase family")
	ErrUnknownCostType  = errors.New("unknown cost type")
	ErrUnknownCostRole  = errors.New("unknown cost role")
	ErrUnknownStaffRole = errors.New("unknown staff role")
	ErrNotFound         = errors.New("not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts ISO (2006-01-02) and the day-first form used by the
// legacy CSV files (02/01/2006).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: unsupported format", s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// NewDailySales returns an empty record for the given day.
func NewDailySales(d Date) DailySales {
	return DailySales{
		Date:    d,
		Sales:   make(map[Shift]Money, len(Shifts)),
		Covers:  make(map[Shift]int, len(Shifts)),
		Tickets: make(map[Shift]int, len(Shifts)),
	}
}

// Total is the sum of sales across all shifts.
func (s DailySales) Total() Money {
	var total Money
	for _, sh := range Shifts {
		total = total.Add(s.Sales[sh])
	}
	return total
}

func (s DailySales) TotalTickets() int {
	n := 0
	for _, sh := range Shifts {
		n += s.Tickets[sh]
	}
	return n
}

func (s DailySales) TotalCovers() int {
	n := 0
	for _, sh := range Shifts {
		n += s.Covers[sh]
	}
	return n
}

// AverageTicket returns total sales per ticket, zero when there are no tickets.
func (s DailySales) AverageTicket() Money {
	t := s.TotalTickets()
	if t == 0 {
		return Money{}
	}
	return MoneyFromDecimal(s.Total().Decimal().Div(decimalFromInt(t)))
}

func (s DailySales) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return err
	}
	for _, sh := range Shifts {
		if s.Sales[sh].Cents < 0 {
			return fmt.Errorf("%s sales: %w", sh, ErrNegativeAmount)
		}
		if s.Covers[sh] < 0 || s.Tickets[sh] < 0 {
			return fmt.Errorf("%s counters: %w", sh, ErrNegativeAmount)
		}
	}
	if len(s.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}

func (p Purchase) Validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Supplier) == "" {
		return ErrEmptySupplier
	}
	if !contains(PurchaseFamilies, p.Family) {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, p.Family)
	}
	return p.Cost.Validate()
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Concept)) == 0 {
		return ErrEmptyConcept
	}
	if len(e.Concept) > 200 {
		return errors.New("concept too long (max 200 characters)")
	}
	if !contains(ExpenseCategories, e.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}
	switch e.Type {
	case Fixed, Variable:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCostType, e.Type)
	}
	switch e.Role {
	case Structural, Operational:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCostRole, e.Role)
	}
	return e.Cost.Validate()
}

func (p Position) Validate() error {
	if p.Year < 2000 || p.Year > 2100 {
		return ErrInvalidYear
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.AnnualGross.Cents < 0 {
		return ErrNegativeAmount
	}
	switch p.Role {
	case StaffMinimum, StaffExpandable, StaffReinforce:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStaffRole, p.Role)
	}
	for i, n := range p.Headcount {
		if n < 0 {
			return fmt.Errorf("headcount for month %d: %w", i+1, ErrNegativeAmount)
		}
	}
	return nil
}

// MonthlyCost is gross/12 × headcount × (1 + employer social security).
func (p Position) MonthlyCost(month int) Money {
	if month < 1 || month > 12 {
		return Money{}
	}
	n := p.Headcount[month-1]
	if n == 0 {
		return Money{}
	}
	monthly := p.AnnualGross.Decimal().Div(decimalFromInt(12))
	payroll := monthly.Mul(decimalFromInt(n))
	return MoneyFromDecimal(payroll.Mul(decimalFromFloat(1 + EmployerSocialSecurity)))
}

// IsFixed reports whether the role counts towards structural fixed costs.
func (r StaffRole) IsFixed() bool {
	return r == StaffMinimum
}

func (s InventorySnapshot) Validate() error {
	if s.Year < 2000 || s.Year > 2100 {
		return ErrInvalidYear
	}
	if s.Month < 1 || s.Month > 12 {
		return ErrInvalidMonth
	}
	if s.Value.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// NormalizeSupplier trims and collapses inner whitespace so the supplier
// master list stays free of near-duplicates.
func NormalizeSupplier(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// MergeSuppliers adds name to list when no case-insensitive match exists.
func MergeSuppliers(list []string, name string) ([]string, bool) {
	name = NormalizeSupplier(name)
	if name == "" {
		return list, false
	}
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return list, false
		}
	}
	return append(list, name), true
}
