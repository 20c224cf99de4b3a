package agenda

import (
	"testing"
	"time"
)

// Tuesday 2026-09-01.
var testDay = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func TestBuildWindowsDefault(t *testing.T) {
	windows := BuildWindows(testDay, time.UTC, nil)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	wantStart := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)
	if !windows[0].Start.Equal(wantStart) || !windows[0].End.Equal(wantEnd) {
		t.Fatalf("default window = %v..%v, want %v..%v",
			windows[0].Start, windows[0].End, wantStart, wantEnd)
	}
}

func TestBuildWindowsEmptyWeeklyUsesDefault(t *testing.T) {
	cfg := &WorkingHours{ProfessionalID: 1}
	windows := BuildWindows(testDay, time.UTC, cfg)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want default window", len(windows))
	}
}

func TestBuildWindowsWeekly(t *testing.T) {
	cfg := &WorkingHours{
		Weekly: map[time.Weekday][]MinuteRange{
			time.Tuesday: {{540, 780}, {900, 1080}}, // 09:00-13:00, 15:00-18:00
		},
	}
	windows := BuildWindows(testDay, time.UTC, cfg)
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if windows[0].Start.Hour() != 9 || windows[1].Start.Hour() != 15 {
		t.Fatalf("windows start at %v and %v, want 09:00 and 15:00",
			windows[0].Start, windows[1].Start)
	}
}

func TestBuildWindowsWeekdayNotConfigured(t *testing.T) {
	// A weekly pattern exists but has no entry for Tuesday: not a working day.
	cfg := &WorkingHours{
		Weekly: map[time.Weekday][]MinuteRange{
			time.Monday: {{480, 960}},
		},
	}
	if windows := BuildWindows(testDay, time.UTC, cfg); len(windows) != 0 {
		t.Fatalf("got %d windows, want 0 for unconfigured weekday", len(windows))
	}
}

func TestBuildWindowsExceptionOverridesWeekly(t *testing.T) {
	cfg := &WorkingHours{
		Weekly: map[time.Weekday][]MinuteRange{
			time.Tuesday: {{480, 960}},
		},
		Exceptions: map[string][]MinuteRange{
			"2026-09-01": {{600, 720}}, // 10:00-12:00 only
		},
	}
	windows := BuildWindows(testDay, time.UTC, cfg)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	if windows[0].Start.Hour() != 10 || windows[0].End.Hour() != 12 {
		t.Fatalf("exception window = %v..%v, want 10:00..12:00", windows[0].Start, windows[0].End)
	}
}

func TestBuildWindowsEmptyExceptionClosesDay(t *testing.T) {
	cfg := &WorkingHours{
		Weekly: map[time.Weekday][]MinuteRange{
			time.Tuesday: {{480, 960}},
		},
		Exceptions: map[string][]MinuteRange{
			"2026-09-01": {},
		},
	}
	if windows := BuildWindows(testDay, time.UTC, cfg); len(windows) != 0 {
		t.Fatalf("got %d windows, want 0 for a closed day", len(windows))
	}
}

func TestBuildWindowsSkipsInvalidAndOverlapping(t *testing.T) {
	cfg := &WorkingHours{
		Weekly: map[time.Weekday][]MinuteRange{
			time.Tuesday: {
				{600, 720},
				{660, 780}, // overlaps the first, dropped
				{900, 840}, // inverted, dropped
				{840, 900},
			},
		},
	}
	windows := BuildWindows(testDay, time.UTC, cfg)
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
}

func TestBuildWindowsClinicTimezone(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	// 2026-09-01 02:00 UTC is still 2026-08-31 in the clinic timezone.
	day := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	cfg := &WorkingHours{
		Exceptions: map[string][]MinuteRange{
			"2026-08-31": {{540, 600}},
		},
	}
	windows := BuildWindows(day, loc, cfg)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want the clinic-local exception to apply", len(windows))
	}
	want := time.Date(2026, 8, 31, 9, 0, 0, 0, loc)
	if !windows[0].Start.Equal(want) {
		t.Fatalf("window starts %v, want %v", windows[0].Start, want)
	}
}
