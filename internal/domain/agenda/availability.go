package agenda

import (
	"sort"
	"time"

	"github.com/clinsuite/agenda/pkg/timerange"
)

// DefaultDayWindow is used for professionals with no configuration at all.
var DefaultDayWindow = MinuteRange{StartMinute: 8 * 60, EndMinute: 16 * 60}

// dateKey formats a day for exception lookup, in the clinic timezone.
func dateKey(day time.Time, loc *time.Location) string {
	return day.In(loc).Format("2006-01-02")
}

// BuildWindows turns a professional's working-hours configuration into the
// concrete windows for one calendar day.
//
// Resolution order: a date-specific exception is authoritative (an exception
// with no ranges means closed all day); otherwise the weekly pattern's entry
// for the weekday applies. A professional with no configuration at all gets
// the system default window. A weekly pattern that exists but omits the
// weekday means the professional does not work that day.
func BuildWindows(day time.Time, loc *time.Location, cfg *WorkingHours) []timerange.Range {
	local := day.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	ranges := resolveRanges(local, loc, cfg)

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].StartMinute < ranges[j].StartMinute
	})

	windows := make([]timerange.Range, 0, len(ranges))
	lastEnd := 0
	for _, r := range ranges {
		if !r.Valid() {
			continue
		}
		if r.StartMinute < lastEnd {
			// Overlapping declarations collapse into the earlier window.
			continue
		}
		windows = append(windows, timerange.Range{
			Start: midnight.Add(time.Duration(r.StartMinute) * time.Minute),
			End:   midnight.Add(time.Duration(r.EndMinute) * time.Minute),
		})
		lastEnd = r.EndMinute
	}
	return windows
}

func resolveRanges(local time.Time, loc *time.Location, cfg *WorkingHours) []MinuteRange {
	if cfg == nil {
		return []MinuteRange{DefaultDayWindow}
	}
	if cfg.Exceptions != nil {
		if ranges, ok := cfg.Exceptions[dateKey(local, loc)]; ok {
			return ranges
		}
	}
	if len(cfg.Weekly) == 0 {
		return []MinuteRange{DefaultDayWindow}
	}
	return cfg.Weekly[local.Weekday()]
}
