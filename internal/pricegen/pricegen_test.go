package pricegen

import (
	"testing"
	"time"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := Year(2023, 7, "A", "B")
	b := Year(2023, 7, "A", "B")

	if a.Len() != b.Len() || a.Len() == 0 {
		t.Fatalf("Len = %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Values {
		for j := range a.Values[i] {
			if a.Values[i][j] != b.Values[i][j] {
				t.Fatalf("row %d col %d differs", i, j)
			}
		}
	}
}

func TestGenerate_WeekdaysOnly(t *testing.T) {
	s := Year(2024, 1, "A")
	for _, d := range s.Dates {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			t.Fatalf("weekend date %s", d)
		}
	}
	// 2024 has 262 weekdays
	if s.Len() != 262 {
		t.Errorf("Len = %d, want 262", s.Len())
	}
	for _, v := range s.Values[s.Len()-1] {
		if !(v > 0) {
			t.Errorf("non-positive price %v", v)
		}
	}
}
