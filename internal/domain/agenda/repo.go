package agenda

import (
	"context"
	"time"

	"github.com/clinsuite/agenda/pkg/timerange"
)

type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int64) (*Booking, error)
	// ListOverlappingActive returns active bookings whose range intersects
	// rng and which share the professional or the room. excludeID removes
	// one booking from the scan.
	ListOverlappingActive(ctx context.Context, professionalID int64, roomID *int64, rng timerange.Range, excludeID *int64) ([]*Booking, error)
	// UpdateStatus performs the conditional write "set status where id and
	// status = from", applying the transition's timestamp side effect.
	// Returns false when zero rows matched.
	UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
	// Cancel conditionally moves a booking from `from` to CANCELLED with
	// reason, note and actor. Returns false when zero rows matched.
	Cancel(ctx context.Context, id int64, from Status, reason CancelReason, note *string, actorID string, at time.Time) (bool, error)
	// ListInRange returns bookings intersecting rng, optionally scoped to a
	// professional and/or room, all statuses included.
	ListInRange(ctx context.Context, rng timerange.Range, professionalID, roomID *int64) ([]*Booking, error)
	// ListUnconfirmed returns SCHEDULED bookings starting before the horizon.
	ListUnconfirmed(ctx context.Context, horizon time.Time) ([]*Booking, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, e *HistoryEntry) error
	ListByBooking(ctx context.Context, bookingID int64) ([]*HistoryEntry, error)
}

type BlockRepository interface {
	Create(ctx context.Context, b *ScheduleBlock) error
	GetByID(ctx context.Context, id int64) (*ScheduleBlock, error)
	SetActive(ctx context.Context, id int64, active bool) error
	// ListActiveOverlapping returns all active blocks intersecting rng,
	// regardless of resource scoping; callers filter with AppliesTo.
	ListActiveOverlapping(ctx context.Context, rng timerange.Range) ([]*ScheduleBlock, error)
}

type WorkingHoursRepository interface {
	// GetForProfessional returns nil with no error when the professional has
	// no configuration.
	GetForProfessional(ctx context.Context, professionalID int64) (*WorkingHours, error)
	// ReplaceWeekly swaps the professional's weekly pattern for the given one.
	ReplaceWeekly(ctx context.Context, professionalID int64, weekly map[time.Weekday][]MinuteRange) error
	// SetException overrides one date. An empty ranges slice closes the day.
	SetException(ctx context.Context, professionalID int64, date string, ranges []MinuteRange) error
}
