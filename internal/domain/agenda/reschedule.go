package agenda

import (
	"context"
	"errors"
	"time"

	"github.com/clinsuite/agenda/internal/platform/audit"
)

// RescheduleRequest moves a booking to a new time. Zero-valued fields inherit
// from the original booking.
type RescheduleRequest struct {
	BookingID       int64     `json:"-"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	ProfessionalID  *int64    `json:"professional_id,omitempty"`
	RoomID          *int64    `json:"room_id,omitempty"`
	Note            *string   `json:"note,omitempty"`
}

// RescheduleResult reports both sides of a completed reschedule.
type RescheduleResult struct {
	New      *Booking `json:"new"`
	Original *Booking `json:"original"`
}

// Reschedule replaces a SCHEDULED or CONFIRMED booking with a new one at a
// different time, as create-new plus cancel-old in a single transaction. The
// original booking is excluded from conflict detection so it cannot clash
// with its own replacement. A failed conflict check leaves everything
// untouched and records the attempt in the audit log with timing diagnostics.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest, actorID string) (*RescheduleResult, error) {
	started := s.now()

	var result *RescheduleResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		original, err := s.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if original.Status != StatusScheduled && original.Status != StatusConfirmed {
			return ErrNotReschedulable
		}

		duration := req.DurationMinutes
		if duration == 0 {
			duration = original.DurationMinutes()
		}
		if duration < 1 || duration > 1440 {
			return validationError("duration_minutes must be between 1 and 1440, got %d", duration)
		}
		if req.StartsAt.IsZero() {
			return validationError("starts_at is required")
		}

		professionalID := original.ProfessionalID
		if req.ProfessionalID != nil {
			professionalID = *req.ProfessionalID
		}
		roomID := original.RoomID
		if req.RoomID != nil {
			roomID = req.RoomID
		}

		replacement := &Booking{
			PatientID:       original.PatientID,
			ProfessionalID:  professionalID,
			RoomID:          roomID,
			Type:            original.Type,
			Status:          StatusScheduled,
			StartsAt:        req.StartsAt,
			EndsAt:          req.StartsAt.Add(time.Duration(duration) * time.Minute),
			Reason:          original.Reason,
			Notes:           req.Note,
			RescheduledFrom: &original.ID,
		}

		report, err := s.detector.Detect(ctx, professionalID, roomID, replacement.Range(), &original.ID)
		if err != nil {
			return err
		}
		if report.HasBookingConflict() {
			return &ConflictError{Report: report}
		}
		if report.Blocked {
			return ErrBlockedBySchedule
		}

		if err := s.bookings.Create(ctx, replacement); err != nil {
			return err
		}
		if err := s.history.Append(ctx, &HistoryEntry{
			BookingID: replacement.ID,
			NewStatus: StatusScheduled,
			ActorID:   actorID,
			Note:      req.Note,
		}); err != nil {
			return err
		}

		ok, err := s.bookings.Cancel(ctx, original.ID, original.Status, ReasonClinic, req.Note, actorID, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentModification
		}
		prev := original.Status
		if err := s.history.Append(ctx, &HistoryEntry{
			BookingID:      original.ID,
			PreviousStatus: &prev,
			NewStatus:      StatusCancelled,
			ActorID:        actorID,
			Note:           req.Note,
		}); err != nil {
			return err
		}

		cancelled, err := s.bookings.GetByID(ctx, original.ID)
		if err != nil {
			return err
		}
		result = &RescheduleResult{New: replacement, Original: cancelled}
		return nil
	})

	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) || errors.Is(err, ErrBlockedBySchedule) {
			s.audit.Record(ctx, audit.Entry{
				Action:    audit.ActionRescheduleFailed,
				BookingID: &req.BookingID,
				ActorID:   actorID,
				Detail: map[string]any{
					"starts_at":  req.StartsAt,
					"blocked":    errors.Is(err, ErrBlockedBySchedule),
					"elapsed_ms": s.now().Sub(started).Milliseconds(),
				},
			})
		}
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:    audit.ActionBookingRescheduled,
		BookingID: &result.New.ID,
		ActorID:   actorID,
		Detail: map[string]any{
			"original_id": result.Original.ID,
			"new_id":      result.New.ID,
			"starts_at":   result.New.StartsAt,
			"elapsed_ms":  s.now().Sub(started).Milliseconds(),
		},
	})
	return result, nil
}
