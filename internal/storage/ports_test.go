package storage

import (
	"testing"

	"oyken/internal/core"
)

func TestRangeOf(t *testing.T) {
	r := RangeOf(core.Period{Year: 2024, Month: 2})
	if r.From != core.NewDate(2024, 2, 1) || r.To != core.NewDate(2024, 2, 29) {
		t.Fatalf("unexpected range %v..%v", r.From, r.To)
	}
	if !r.Contains(core.NewDate(2024, 2, 29)) || r.Contains(core.NewDate(2024, 3, 1)) {
		t.Fatalf("contains mismatch")
	}
	y := RangeOf(core.Period{Year: 2024})
	if !y.Contains(core.NewDate(2024, 12, 31)) || y.Contains(core.NewDate(2025, 1, 1)) {
		t.Fatalf("whole year mismatch")
	}
	if !All.Contains(core.NewDate(1999, 1, 1)) {
		t.Fatalf("open range should match everything")
	}
}
