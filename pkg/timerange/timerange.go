// Package timerange provides a half-open [Start, End) time interval used for
// booking conflict detection and availability math.
package timerange

import "time"

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a Range from a start instant and a duration.
func New(start time.Time, d time.Duration) Range {
	return Range{Start: start, End: start.Add(d)}
}

// Valid reports whether End is strictly after Start.
func (r Range) Valid() bool {
	return r.End.After(r.Start)
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether two half-open ranges intersect. Ranges that only
// touch at an endpoint do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether the instant t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Day returns the [midnight, next midnight) range of the calendar day that
// contains t, evaluated in t's location.
func Day(t time.Time) Range {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return Range{Start: start, End: start.AddDate(0, 0, 1)}
}

// OverlapsAny reports whether r intersects any range in busy.
func (r Range) OverlapsAny(busy []Range) bool {
	for _, b := range busy {
		if r.Overlaps(b) {
			return true
		}
	}
	return false
}
