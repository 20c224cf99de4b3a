package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/clinsuite/agenda/internal/domain/agenda"
	"github.com/clinsuite/agenda/pkg/timerange"
)

const (
	upcomingLimit      = 5
	unconfirmedHorizon = 24 * time.Hour
)

// BookingSource is the slice of the booking repository the dashboard reads.
type BookingSource interface {
	ListInRange(ctx context.Context, rng timerange.Range, professionalID, roomID *int64) ([]*agenda.Booking, error)
	ListUnconfirmed(ctx context.Context, horizon time.Time) ([]*agenda.Booking, error)
}

// BlockSource lists active schedule blocks.
type BlockSource interface {
	ListActiveOverlapping(ctx context.Context, rng timerange.Range) ([]*agenda.ScheduleBlock, error)
}

type Service struct {
	bookings BookingSource
	blocks   BlockSource
	cache    *gocache.Cache
	loc      *time.Location
	now      func() time.Time
}

func NewService(bookings BookingSource, blocks BlockSource, ttl time.Duration, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		bookings: bookings,
		blocks:   blocks,
		cache:    gocache.New(ttl, 2*ttl),
		loc:      loc,
		now:      time.Now,
	}
}

// Scope optionally narrows a snapshot to one professional and/or room.
type Scope struct {
	ProfessionalID *int64
	RoomID         *int64
}

func (sc Scope) key() string {
	k := ""
	if sc.ProfessionalID != nil {
		k += fmt.Sprintf(":p%d", *sc.ProfessionalID)
	}
	if sc.RoomID != nil {
		k += fmt.Sprintf(":r%d", *sc.RoomID)
	}
	return k
}

// Snapshot returns the aggregated view for the given day and scope, serving a
// cached copy when one is still fresh. Aggregation reads the day's bookings
// once and derives everything in memory.
func (s *Service) Snapshot(ctx context.Context, day time.Time, scope Scope) (*Snapshot, error) {
	key := day.In(s.loc).Format("2006-01-02") + scope.key()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Snapshot), nil
	}

	snap, err := s.build(ctx, day, scope)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, snap, gocache.DefaultExpiration)
	return snap, nil
}

func (s *Service) build(ctx context.Context, day time.Time, scope Scope) (*Snapshot, error) {
	now := s.now()
	dayRange := timerange.Day(day.In(s.loc))

	bookings, err := s.bookings.ListInRange(ctx, dayRange, scope.ProfessionalID, scope.RoomID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListActiveOverlapping(ctx, dayRange)
	if err != nil {
		return nil, err
	}
	if scope.ProfessionalID != nil || scope.RoomID != nil {
		var prof int64
		if scope.ProfessionalID != nil {
			prof = *scope.ProfessionalID
		}
		applicable := blocks[:0]
		for _, b := range blocks {
			if b.AppliesTo(prof, scope.RoomID) {
				applicable = append(applicable, b)
			}
		}
		blocks = applicable
	}
	unconfirmed, err := s.bookings.ListUnconfirmed(ctx, now.Add(unconfirmedHorizon))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Date:             dayRange.Start.Format("2006-01-02"),
		GeneratedAt:      now,
		Total:            len(bookings),
		ActiveBlockCount: len(blocks),
	}

	var visitMinutes []float64
	var bookedMinutes float64
	for _, b := range bookings {
		switch b.Status {
		case agenda.StatusScheduled:
			snap.Scheduled++
		case agenda.StatusConfirmed:
			snap.Confirmed++
		case agenda.StatusCheckedIn:
			snap.CheckedIn++
		case agenda.StatusInProgress:
			snap.InProgress++
		case agenda.StatusCompleted:
			snap.Completed++
			if b.StartedAt != nil && b.CompletedAt != nil {
				visitMinutes = append(visitMinutes, b.CompletedAt.Sub(*b.StartedAt).Minutes())
			}
		case agenda.StatusCancelled:
			snap.Cancelled++
		case agenda.StatusNoShow:
			snap.NoShow++
		}
		if b.Status.Active() || b.Status == agenda.StatusCompleted {
			bookedMinutes += float64(b.DurationMinutes())
		}
	}

	snap.CompletionRate = rate(snap.Completed, snap.Total)
	snap.CancellationRate = rate(snap.Cancelled, snap.Total)
	snap.NoShowRate = rate(snap.NoShow, snap.Total)
	snap.OccupancyRate = round2(bookedMinutes / dayRange.Duration().Minutes() * 100)
	snap.AvgVisitMinutes = round2(mean(visitMinutes))
	snap.MedianVisitMinutes = round2(median(visitMinutes))

	snap.Upcoming = upcoming(bookings, now)
	snap.Overdue = overdue(bookings, now)
	snap.Conflicts = conflicts(bookings)

	// ListUnconfirmed has no lower bound; keep only those not already due.
	snap.Unconfirmed = make([]Unconfirmed, 0)
	for _, b := range unconfirmed {
		if !b.StartsAt.After(now) {
			continue
		}
		if scope.ProfessionalID != nil && b.ProfessionalID != *scope.ProfessionalID {
			continue
		}
		if scope.RoomID != nil && (b.RoomID == nil || *b.RoomID != *scope.RoomID) {
			continue
		}
		snap.Unconfirmed = append(snap.Unconfirmed, Unconfirmed{
			BookingID:      b.ID,
			PatientID:      b.PatientID,
			ProfessionalID: b.ProfessionalID,
			StartsAt:       b.StartsAt,
		})
	}
	sort.Slice(snap.Unconfirmed, func(i, j int) bool {
		return snap.Unconfirmed[i].StartsAt.Before(snap.Unconfirmed[j].StartsAt)
	})
	snap.UnconfirmedSoon = len(snap.Unconfirmed)
	return snap, nil
}

func upcoming(bookings []*agenda.Booking, now time.Time) []Upcoming {
	var pending []*agenda.Booking
	for _, b := range bookings {
		if b.Status.Active() && b.StartsAt.After(now) {
			pending = append(pending, b)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].StartsAt.Before(pending[j].StartsAt)
	})
	if len(pending) > upcomingLimit {
		pending = pending[:upcomingLimit]
	}

	out := make([]Upcoming, 0, len(pending))
	for _, b := range pending {
		out = append(out, Upcoming{
			BookingID:      b.ID,
			PatientID:      b.PatientID,
			ProfessionalID: b.ProfessionalID,
			StartsAt:       b.StartsAt,
			Status:         string(b.Status),
		})
	}
	return out
}

func overdue(bookings []*agenda.Booking, now time.Time) []Overdue {
	out := make([]Overdue, 0)
	for _, b := range bookings {
		if !b.Status.Active() || !b.StartsAt.Before(now) {
			continue
		}
		out = append(out, Overdue{
			BookingID:      b.ID,
			PatientID:      b.PatientID,
			ProfessionalID: b.ProfessionalID,
			StartsAt:       b.StartsAt,
			Status:         string(b.Status),
			MinutesLate:    int(now.Sub(b.StartsAt) / time.Minute),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinutesLate > out[j].MinutesLate })
	return out
}

// conflicts scans active bookings pairwise per resource. Conflicting pairs
// cannot be created through the API, so any hit points at out-of-band data
// changes. Day volumes are small enough that the quadratic scan is fine.
func conflicts(bookings []*agenda.Booking) []ConflictPair {
	var active []*agenda.Booking
	for _, b := range bookings {
		if b.Status.Active() {
			active = append(active, b)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	out := make([]ConflictPair, 0)
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if !a.Range().Overlaps(b.Range()) {
				continue
			}
			if a.ProfessionalID == b.ProfessionalID {
				out = append(out, ConflictPair{
					Resource:   "professional",
					ResourceID: a.ProfessionalID,
					BookingA:   a.ID,
					BookingB:   b.ID,
				})
			}
			if a.RoomID != nil && b.RoomID != nil && *a.RoomID == *b.RoomID {
				out = append(out, ConflictPair{
					Resource:   "room",
					ResourceID: *a.RoomID,
					BookingA:   a.ID,
					BookingB:   b.ID,
				})
			}
		}
	}
	return out
}

// rate is a whole percentage; zero denominator means zero, never NaN.
func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part) / float64(total) * 100)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
