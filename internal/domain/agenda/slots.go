package agenda

import (
	"time"

	"github.com/clinsuite/agenda/pkg/timerange"
)

// Slot is one bookable candidate in the availability feed.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotIter lazily enumerates candidate slots over a set of working windows:
// within each window, starts step by the interval until the slot end would
// pass the window end. The iterator is restartable via Reset.
type SlotIter struct {
	windows  []timerange.Range
	duration time.Duration
	step     time.Duration

	window int
	cursor time.Time
}

// NewSlotIter builds an iterator over the given windows. Duration and step
// must be positive.
func NewSlotIter(windows []timerange.Range, duration, step time.Duration) *SlotIter {
	it := &SlotIter{windows: windows, duration: duration, step: step}
	it.Reset()
	return it
}

// Reset rewinds the iterator to the first candidate.
func (it *SlotIter) Reset() {
	it.window = 0
	if len(it.windows) > 0 {
		it.cursor = it.windows[0].Start
	}
}

// Next returns the next candidate slot, or false when exhausted.
func (it *SlotIter) Next() (timerange.Range, bool) {
	if it.duration <= 0 || it.step <= 0 {
		return timerange.Range{}, false
	}
	for it.window < len(it.windows) {
		w := it.windows[it.window]
		end := it.cursor.Add(it.duration)
		if !end.After(w.End) {
			slot := timerange.Range{Start: it.cursor, End: end}
			it.cursor = it.cursor.Add(it.step)
			return slot, true
		}
		it.window++
		if it.window < len(it.windows) {
			it.cursor = it.windows[it.window].Start
		}
	}
	return timerange.Range{}, false
}

// FreeSlots enumerates all candidates and drops those overlapping the busy
// set (active bookings plus applicable blocks).
func FreeSlots(windows []timerange.Range, duration, step time.Duration, busy []timerange.Range) []Slot {
	it := NewSlotIter(windows, duration, step)
	slots := make([]Slot, 0)
	for {
		candidate, ok := it.Next()
		if !ok {
			return slots
		}
		if candidate.OverlapsAny(busy) {
			continue
		}
		slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
	}
}
