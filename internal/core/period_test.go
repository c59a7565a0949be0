package core

import "testing"

func TestPeriod(t *testing.T) {
	p := Period{Year: 2025, Month: 1}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if prev := p.Previous(); prev != (Period{Year: 2024, Month: 12}) {
		t.Fatalf("unexpected previous %v", prev)
	}
	if next := p.Next(); next != (Period{Year: 2025, Month: 2}) {
		t.Fatalf("unexpected next %v", next)
	}
	if next := (Period{Year: 2024, Month: 12}).Next(); next != p {
		t.Fatalf("december should roll over to %v, got %v", p, next)
	}
	if !p.Contains(NewDate(2025, 1, 31)) || p.Contains(NewDate(2025, 2, 1)) {
		t.Fatalf("contains mismatch")
	}
	year := Period{Year: 2025}
	if !year.WholeYear() || len(year.Months()) != 12 || !year.Contains(NewDate(2025, 7, 4)) {
		t.Fatalf("whole year mismatch")
	}
	if year.String() != "2025" || p.String() != "2025-01" {
		t.Fatalf("unexpected strings %q %q", year, p)
	}
	if err := (Period{Year: 2025, Month: 13}).Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMonthlyTotalValidate(t *testing.T) {
	ok := MonthlyTotal{Kind: KindInventoryVariation, Year: 2025, Month: 2, Amount: Money{Cents: -500}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if err := (MonthlyTotal{Kind: "otros", Year: 2025, Month: 2}).Validate(); err == nil {
		t.Fatalf("expected kind error")
	}
	if err := (MonthlyTotal{Kind: KindSales, Year: 2025, Month: 0}).Validate(); err == nil {
		t.Fatalf("expected month error")
	}
}
