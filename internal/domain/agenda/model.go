package agenda

import (
	"time"

	"github.com/clinsuite/agenda/pkg/timerange"
)

// Status is a booking's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// transitions is the full state machine as a single lookup table. Cancellation
// is not listed here; it is a dedicated operation guarded separately.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCheckedIn, StatusNoShow},
	StatusConfirmed:  {StatusCheckedIn, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// ActiveStatuses are the statuses that occupy the booking's resources.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Active reports whether a booking in this status still occupies its
// professional and room.
func (s Status) Active() bool {
	return !s.Terminal() && s.Valid()
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Callers must check Terminal first to distinguish the two failures.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BookingType classifies the clinical purpose of a booking.
type BookingType string

const (
	TypeConsultation BookingType = "CONSULTATION"
	TypeCleaning     BookingType = "CLEANING"
	TypeExtraction   BookingType = "EXTRACTION"
	TypeOrthodontics BookingType = "ORTHODONTICS"
	TypeSurgery      BookingType = "SURGERY"
	TypeOther        BookingType = "OTHER"
)

var bookingTypes = map[BookingType]bool{
	TypeConsultation: true, TypeCleaning: true, TypeExtraction: true,
	TypeOrthodontics: true, TypeSurgery: true, TypeOther: true,
}

func (t BookingType) Valid() bool { return bookingTypes[t] }

// CancelReason records why a booking was cancelled.
type CancelReason string

const (
	ReasonPatient      CancelReason = "PATIENT"
	ReasonProfessional CancelReason = "PROFESSIONAL"
	ReasonClinic       CancelReason = "CLINIC"
	ReasonEmergency    CancelReason = "EMERGENCY"
	ReasonOther        CancelReason = "OTHER"
)

var cancelReasons = map[CancelReason]bool{
	ReasonPatient: true, ReasonProfessional: true, ReasonClinic: true,
	ReasonEmergency: true, ReasonOther: true,
}

func (r CancelReason) Valid() bool { return cancelReasons[r] }

// Booking maps to the booking table. A booking occupies its professional
// (always) and its room (when assigned) exclusively for [StartsAt, EndsAt)
// while in an active status.
type Booking struct {
	ID               int64        `db:"id" json:"id"`
	PatientID        int64        `db:"patient_id" json:"patient_id"`
	ProfessionalID   int64        `db:"professional_id" json:"professional_id"`
	RoomID           *int64       `db:"room_id" json:"room_id,omitempty"`
	Type             BookingType  `db:"booking_type" json:"booking_type"`
	Status           Status       `db:"status" json:"status"`
	StartsAt         time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time    `db:"ends_at" json:"ends_at"`
	Reason           *string      `db:"reason" json:"reason,omitempty"`
	Notes            *string      `db:"notes" json:"notes,omitempty"`
	RescheduledFrom  *int64       `db:"rescheduled_from_id" json:"rescheduled_from_id,omitempty"`
	CheckedInAt      *time.Time   `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt        *time.Time   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt      *time.Time   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason     *CancelReason `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy      *string      `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// Range returns the occupied half-open interval.
func (b *Booking) Range() timerange.Range {
	return timerange.Range{Start: b.StartsAt, End: b.EndsAt}
}

// DurationMinutes returns the booked length in whole minutes.
func (b *Booking) DurationMinutes() int {
	return int(b.EndsAt.Sub(b.StartsAt) / time.Minute)
}

// HistoryEntry is one row of the append-only status trail. PreviousStatus is
// nil for the creation entry.
type HistoryEntry struct {
	ID             int64     `db:"id" json:"id"`
	BookingID      int64     `db:"booking_id" json:"booking_id"`
	PreviousStatus *Status   `db:"previous_status" json:"previous_status,omitempty"`
	NewStatus      Status    `db:"new_status" json:"new_status"`
	ActorID        string    `db:"actor_id" json:"actor_id"`
	Note           *string   `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ScheduleBlock is an externally managed exclusion window. A block with
// neither professional nor room set applies to everyone.
type ScheduleBlock struct {
	ID             int64     `db:"id" json:"id"`
	ProfessionalID *int64    `db:"professional_id" json:"professional_id,omitempty"`
	RoomID         *int64    `db:"room_id" json:"room_id,omitempty"`
	StartsAt       time.Time `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time `db:"ends_at" json:"ends_at"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Range returns the blocked half-open interval.
func (b *ScheduleBlock) Range() timerange.Range {
	return timerange.Range{Start: b.StartsAt, End: b.EndsAt}
}

// AppliesTo reports whether the block constrains the given resource pair.
func (b *ScheduleBlock) AppliesTo(professionalID int64, roomID *int64) bool {
	if b.ProfessionalID == nil && b.RoomID == nil {
		return true // global block
	}
	if b.ProfessionalID != nil && *b.ProfessionalID == professionalID {
		return true
	}
	if b.RoomID != nil && roomID != nil && *b.RoomID == *roomID {
		return true
	}
	return false
}

// MinuteRange is a working interval within a day, in minutes since midnight.
type MinuteRange struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Valid reports whether the range lies within a day and is non-empty.
func (m MinuteRange) Valid() bool {
	return m.StartMinute >= 0 && m.EndMinute <= 24*60 && m.StartMinute < m.EndMinute
}

// WorkingHours is a professional's declared schedule: a weekly pattern plus
// date-specific exceptions. An exception with an empty range list means the
// professional is unavailable that whole day.
type WorkingHours struct {
	ProfessionalID int64
	Weekly         map[time.Weekday][]MinuteRange
	Exceptions     map[string][]MinuteRange // keyed by YYYY-MM-DD in the clinic timezone
}
