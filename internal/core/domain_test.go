package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-03-05", "05/03/2024", "2024-03-05 10:11:12"} {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if d != NewDate(2024, 3, 5) {
			t.Fatalf("%q: got %s", in, d)
		}
	}
	if _, err := ParseDate("March 5"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestDailySalesTotals(t *testing.T) {
	s := NewDailySales(NewDate(2025, 2, 14))
	s.Sales[Morning] = Money{Cents: 10000}
	s.Sales[Night] = Money{Cents: 25050}
	s.Tickets[Morning] = 10
	s.Tickets[Night] = 20
	s.Covers[Night] = 40

	if got := s.Total().Cents; got != 35050 {
		t.Fatalf("total: expected 35050, got %d", got)
	}
	if got := s.TotalTickets(); got != 30 {
		t.Fatalf("tickets: expected 30, got %d", got)
	}
	if got := s.TotalCovers(); got != 40 {
		t.Fatalf("covers: expected 40, got %d", got)
	}
	if got := s.AverageTicket().Cents; got != 1168 {
		t.Fatalf("avg ticket: expected 1168, got %d", got)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	s.Sales[Afternoon] = Money{Cents: -1}
	if err := s.Validate(); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:     NewDate(2025, 1, 1),
		Concept:  "Alquiler local",
		Category: "Alquiler",
		Type:     Fixed,
		Role:     Structural,
		Cost:     Money{Cents: 120000},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := func(mut func(*Expense)) Expense {
		e := good
		mut(&e)
		return e
	}
	bads := []Expense{
		bad(func(e *Expense) { e.Date = Date{} }),
		bad(func(e *Expense) { e.Concept = "  " }),
		bad(func(e *Expense) { e.Cost = Money{} }),
		bad(func(e *Expense) { e.Category = "Viajes" }),
		bad(func(e *Expense) { e.Type = "Mixto" }),
		bad(func(e *Expense) { e.Role = "" }),
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPurchaseValidate(t *testing.T) {
	p := Purchase{Date: NewDate(2025, 1, 3), Supplier: "Makro", Family: "Bebidas", Cost: Money{Cents: 5000}}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	p.Family = "Vinos"
	if err := p.Validate(); !errors.Is(err, ErrUnknownFamily) {
		t.Fatalf("expected ErrUnknownFamily, got %v", err)
	}
}

func TestPositionMonthlyCost(t *testing.T) {
	p := Position{
		Year:        2025,
		Title:       "Cocinero",
		AnnualGross: Euros(24000),
		Role:        StaffMinimum,
	}
	p.Headcount[0] = 2
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	// 24000/12 * 2 * 1.33
	if got := p.MonthlyCost(1).Cents; got != 532000 {
		t.Fatalf("expected 532000, got %d", got)
	}
	if got := p.MonthlyCost(2).Cents; got != 0 {
		t.Fatalf("expected 0 for empty month, got %d", got)
	}
	if got := p.MonthlyCost(13).Cents; got != 0 {
		t.Fatalf("expected 0 for invalid month, got %d", got)
	}
}

func TestInventorySnapshotValidate(t *testing.T) {
	if err := (InventorySnapshot{Year: 2025, Month: 3, Value: Euros(10)}).Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if err := (InventorySnapshot{Year: 2025, Month: 3}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := (InventorySnapshot{Year: 2025, Month: 13, Value: Euros(1)}).Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestMergeSuppliers(t *testing.T) {
	list := []string{"Makro"}
	list, added := MergeSuppliers(list, "  makro ")
	if added || len(list) != 1 {
		t.Fatalf("expected dedup, got %v", list)
	}
	list, added = MergeSuppliers(list, "Pescados  García")
	if !added || list[1] != "Pescados García" {
		t.Fatalf("expected normalized append, got %v", list)
	}
}
