package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/clinsuite/agenda/internal/domain/agenda"
	"github.com/clinsuite/agenda/pkg/timerange"
)

type stubSource struct {
	bookings    []*agenda.Booking
	blocks      []*agenda.ScheduleBlock
	unconfirmed []*agenda.Booking
	listCalls   int
}

func (s *stubSource) ListInRange(_ context.Context, rng timerange.Range, professionalID, roomID *int64) ([]*agenda.Booking, error) {
	s.listCalls++
	var out []*agenda.Booking
	for _, b := range s.bookings {
		if !b.Range().Overlaps(rng) {
			continue
		}
		if professionalID != nil && b.ProfessionalID != *professionalID {
			continue
		}
		if roomID != nil && (b.RoomID == nil || *b.RoomID != *roomID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *stubSource) ListUnconfirmed(_ context.Context, horizon time.Time) ([]*agenda.Booking, error) {
	var out []*agenda.Booking
	for _, b := range s.unconfirmed {
		if b.Status == agenda.StatusScheduled && b.StartsAt.Before(horizon) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubSource) ListActiveOverlapping(_ context.Context, _ timerange.Range) ([]*agenda.ScheduleBlock, error) {
	return s.blocks, nil
}

var day = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2026, 9, 1, h, m, 0, 0, time.UTC)
}

func booking(id int64, prof int64, start time.Time, minutes int, status agenda.Status) *agenda.Booking {
	return &agenda.Booking{
		ID:             id,
		PatientID:      id,
		ProfessionalID: prof,
		Type:           agenda.TypeConsultation,
		Status:         status,
		StartsAt:       start,
		EndsAt:         start.Add(time.Duration(minutes) * time.Minute),
	}
}

func completed(id int64, prof int64, start time.Time, visitMinutes int) *agenda.Booking {
	b := booking(id, prof, start, 30, agenda.StatusCompleted)
	began := start
	done := start.Add(time.Duration(visitMinutes) * time.Minute)
	b.StartedAt = &began
	b.CompletedAt = &done
	return b
}

func newService(src *stubSource, nowAt time.Time) *Service {
	svc := NewService(src, src, time.Minute, time.UTC)
	svc.now = func() time.Time { return nowAt }
	return svc
}

func TestSnapshotCountsAndRates(t *testing.T) {
	src := &stubSource{
		bookings: []*agenda.Booking{
			booking(1, 10, at(9, 0), 30, agenda.StatusScheduled),
			booking(2, 10, at(10, 0), 30, agenda.StatusConfirmed),
			completed(3, 10, at(11, 0), 20),
			completed(4, 11, at(11, 0), 40),
			booking(5, 11, at(12, 0), 30, agenda.StatusCancelled),
			booking(6, 11, at(13, 0), 30, agenda.StatusNoShow),
		},
	}
	svc := newService(src, at(8, 0))

	snap, err := svc.Snapshot(context.Background(), day, Scope{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.Total != 6 || snap.Scheduled != 1 || snap.Confirmed != 1 ||
		snap.Completed != 2 || snap.Cancelled != 1 || snap.NoShow != 1 {
		t.Fatalf("counts = %+v", snap)
	}
	if snap.CompletionRate != 33 {
		t.Errorf("completion rate = %v, want 33", snap.CompletionRate)
	}
	if snap.CancellationRate != 17 || snap.NoShowRate != 17 {
		t.Errorf("rates = %v / %v, want 17 each", snap.CancellationRate, snap.NoShowRate)
	}
	if snap.AvgVisitMinutes != 30 {
		t.Errorf("avg visit = %v, want 30", snap.AvgVisitMinutes)
	}
	if snap.MedianVisitMinutes != 30 {
		t.Errorf("median visit = %v, want 30", snap.MedianVisitMinutes)
	}
}

func TestSnapshotEmptyDay(t *testing.T) {
	svc := newService(&stubSource{}, at(8, 0))

	snap, err := svc.Snapshot(context.Background(), day, Scope{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Total != 0 || snap.CompletionRate != 0 || snap.AvgVisitMinutes != 0 {
		t.Fatalf("empty day snapshot = %+v, want all zeroes", snap)
	}
	if snap.Upcoming == nil || snap.Overdue == nil || snap.Conflicts == nil || snap.Unconfirmed == nil {
		t.Fatal("lists must be empty, not null")
	}
}

func TestSnapshotUpcomingSortedAndCapped(t *testing.T) {
	src := &stubSource{}
	for i := int64(1); i <= 8; i++ {
		src.bookings = append(src.bookings,
			booking(i, 10, at(9, 0).Add(time.Duration(8-i)*time.Hour), 30, agenda.StatusScheduled))
	}
	svc := newService(src, at(8, 0))

	snap, err := svc.Snapshot(context.Background(), day, Scope{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Upcoming) != 5 {
		t.Fatalf("upcoming = %d entries, want cap of 5", len(snap.Upcoming))
	}
	for i := 1; i < len(snap.Upcoming); i++ {
		if snap.Upcoming[i].StartsAt.Before(snap.Upcoming[i-1].StartsAt) {
			t.Fatal("upcoming must be sorted by start time")
		}
	}
}

func TestSnapshotOverdue(t *testing.T) {
	src := &stubSource{
		bookings: []*agenda.Booking{
			booking(1, 10, at(9, 0), 30, agenda.StatusScheduled),  // 45 minutes late
			booking(2, 10, at(9, 30), 30, agenda.StatusCheckedIn), // arrived, still pending
			booking(3, 10, at(10, 0), 30, agenda.StatusConfirmed), // in the future
			booking(4, 10, at(9, 0), 30, agenda.StatusCompleted),  // done, never overdue
			booking(5, 10, at(9, 0), 30, agenda.StatusCancelled),
		},
	}
	svc := newService(src, at(9, 45))

	snap, err := svc.Snapshot(context.Background(), day, Scope{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// Every non-terminal booking past its start counts, sorted most-late first.
	if len(snap.Overdue) != 2 {
		t.Fatalf("overdue = %+v, want bookings 1 and 2", snap.Overdue)
	}
	if snap.Overdue[0].BookingID != 1 || snap.Overdue[0].MinutesLate != 45 {
		t.Fatalf("overdue entry = %+v", snap.Overdue[0])
	}
	if snap.Overdue[1].BookingID != 2 || snap.Overdue[1].MinutesLate != 15 {
		t.Fatalf("overdue entry = %+v", snap.Overdue[1])
	}
	if snap.Overdue[1].Status != string(agenda.StatusCheckedIn) {
		t.Fatalf("status = %q, want CHECKED_IN", snap.Overdue[1].Status)
	}
}

func TestSnapshotConflictScan(t *testing.T) {
	room := int64(3)
	a := booking(1, 10, at(9, 0), 60, agenda.StatusScheduled)
	b := booking(2, 10, at(9, 30), 30, agenda.StatusConfirmed)
	c := booking(3, 11, at(9, 30), 30, agenda.StatusScheduled)
	b.RoomID = &room
	c.RoomID = &room
	// Touching, never conflicting.
	d := booking(4, 10, at(10, 0), 30, agenda.StatusScheduled)

	svc := newService(&stubSource{bookings: []*agenda.Booking{a, b, c, d}}, at(8, 0))

	snap, err := svc.Snapshot(context.Background(), day, Scope{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Conflicts) != 2 {
		t.Fatalf("conflicts = %+v, want professional pair and room pair", snap.Conflicts)
	}
	byResource := map[string]ConflictPair{}
	for _, p := range snap.Conflicts {
		byResource[p.Resource] = p
	}
	if p := byResource["professional"]; p.ResourceID != 10 || p.BookingA != 1 || p.BookingB != 2 {
		t.Errorf("professional pair = %+v", p)
	}
	if p := byResource["room"]; p.ResourceID != room || p.BookingA != 2 || p.BookingB != 3 {
		t.Errorf("room pair = %+v", p)
	}
}

func TestSnapshotUnconfirmedAndBlocks(t *testing.T) {
	src := &stubSource{
		unconfirmed: []*agenda.Booking{
			booking(1, 10, at(10, 0), 30, agenda.StatusScheduled), // soon
			booking(2, 10, at(7, 0), 30, agenda.StatusScheduled),  // already due, excluded
		},
		blocks: []*agenda.ScheduleBlock{
			{ID: 1, StartsAt: at(14, 0), EndsAt: at(15, 0), Active: true},
		},
	}
	svc := newService(src, at(8, 0))

	snap, err := svc.Snapshot(context.Background(), day, Scope{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.UnconfirmedSoon != 1 || len(snap.Unconfirmed) != 1 {
		t.Fatalf("unconfirmed = %+v (count %d), want only booking 1", snap.Unconfirmed, snap.UnconfirmedSoon)
	}
	if got := snap.Unconfirmed[0]; got.BookingID != 1 || !got.StartsAt.Equal(at(10, 0)) {
		t.Errorf("unconfirmed entry = %+v", got)
	}
	if snap.ActiveBlockCount != 1 {
		t.Errorf("active blocks = %d, want 1", snap.ActiveBlockCount)
	}
}

func TestSnapshotUnconfirmedScopedToRoom(t *testing.T) {
	room := int64(3)
	inRoom := booking(1, 10, at(10, 0), 30, agenda.StatusScheduled)
	inRoom.RoomID = &room
	elsewhere := booking(2, 10, at(11, 0), 30, agenda.StatusScheduled)

	src := &stubSource{unconfirmed: []*agenda.Booking{inRoom, elsewhere}}
	svc := newService(src, at(8, 0))

	snap, err := svc.Snapshot(context.Background(), day, Scope{RoomID: &room})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Unconfirmed) != 1 || snap.Unconfirmed[0].BookingID != 1 {
		t.Fatalf("unconfirmed = %+v, want only the room 3 booking", snap.Unconfirmed)
	}
}

func TestSnapshotCached(t *testing.T) {
	src := &stubSource{
		bookings: []*agenda.Booking{booking(1, 10, at(9, 0), 30, agenda.StatusScheduled)},
	}
	svc := newService(src, at(8, 0))

	if _, err := svc.Snapshot(context.Background(), day, Scope{}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.Snapshot(context.Background(), day, Scope{}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if src.listCalls != 1 {
		t.Fatalf("repository hit %d times, want cached second read", src.listCalls)
	}

	// A different day misses the cache.
	if _, err := svc.Snapshot(context.Background(), day.AddDate(0, 0, 1), Scope{}); err != nil {
		t.Fatalf("other day: %v", err)
	}
	if src.listCalls != 2 {
		t.Fatalf("repository hit %d times, want 2", src.listCalls)
	}
}

func TestSnapshotScopedToProfessional(t *testing.T) {
	src := &stubSource{
		bookings: []*agenda.Booking{
			booking(1, 10, at(9, 0), 30, agenda.StatusScheduled),
			booking(2, 11, at(9, 0), 30, agenda.StatusScheduled),
			completed(3, 11, at(10, 0), 30),
		},
	}
	svc := newService(src, at(8, 0))

	prof := int64(11)
	snap, err := svc.Snapshot(context.Background(), day, Scope{ProfessionalID: &prof})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Total != 2 || snap.Scheduled != 1 || snap.Completed != 1 {
		t.Fatalf("scoped snapshot = %+v, want professional 11 only", snap)
	}

	// The scoped snapshot is cached under its own key.
	if _, err := svc.Snapshot(context.Background(), day, Scope{}); err != nil {
		t.Fatalf("unscoped: %v", err)
	}
	if src.listCalls != 2 {
		t.Fatalf("repository hit %d times, want separate cache entries", src.listCalls)
	}
}
