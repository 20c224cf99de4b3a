package timerange

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	a := Range{Start: at(9, 0), End: at(9, 30)}

	cases := []struct {
		name string
		b    Range
		want bool
	}{
		{"inside", Range{Start: at(9, 10), End: at(9, 20)}, true},
		{"straddles start", Range{Start: at(8, 45), End: at(9, 15)}, true},
		{"straddles end", Range{Start: at(9, 15), End: at(9, 45)}, true},
		{"covers", Range{Start: at(8, 0), End: at(10, 0)}, true},
		{"identical", Range{Start: at(9, 0), End: at(9, 30)}, true},
		{"before", Range{Start: at(8, 0), End: at(8, 30)}, false},
		{"after", Range{Start: at(10, 0), End: at(10, 30)}, false},
		{"touching end", Range{Start: at(9, 30), End: at(10, 0)}, false},
		{"touching start", Range{Start: at(8, 30), End: at(9, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Overlaps(tc.b); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := tc.b.Overlaps(a); got != tc.want {
				t.Errorf("Overlaps (reversed) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	if (Range{Start: at(9, 0), End: at(9, 0)}).Valid() {
		t.Error("zero-length range should not be valid")
	}
	if (Range{Start: at(9, 30), End: at(9, 0)}).Valid() {
		t.Error("inverted range should not be valid")
	}
	if !(Range{Start: at(9, 0), End: at(9, 1)}).Valid() {
		t.Error("one-minute range should be valid")
	}
}

func TestContains(t *testing.T) {
	r := Range{Start: at(9, 0), End: at(9, 30)}
	if !r.Contains(at(9, 0)) {
		t.Error("start instant should be contained")
	}
	if r.Contains(at(9, 30)) {
		t.Error("end instant should not be contained (half-open)")
	}
	if !r.Contains(at(9, 15)) {
		t.Error("midpoint should be contained")
	}
}

func TestDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	d := Day(time.Date(2025, 3, 10, 14, 30, 0, 0, loc))
	if d.Start.Hour() != 0 || d.Start.Day() != 10 {
		t.Errorf("unexpected day start: %v", d.Start)
	}
	if d.End.Day() != 11 {
		t.Errorf("unexpected day end: %v", d.End)
	}
}

func TestOverlapsAny(t *testing.T) {
	busy := []Range{
		{Start: at(9, 0), End: at(9, 30)},
		{Start: at(14, 0), End: at(15, 0)},
	}
	if !(Range{Start: at(14, 30), End: at(15, 30)}).OverlapsAny(busy) {
		t.Error("expected overlap with second busy range")
	}
	if (Range{Start: at(9, 30), End: at(10, 0)}).OverlapsAny(busy) {
		t.Error("touching range should not count as overlap")
	}
}
