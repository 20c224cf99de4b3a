package agenda

import (
	"context"
	"errors"
	"testing"

	"github.com/clinsuite/agenda/internal/platform/audit"
)

func TestRescheduleMovesBooking(t *testing.T) {
	f := newFixture(t)

	original, err := f.svc.Create(context.Background(), createReq(9, 0, 30), "recep-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := f.svc.Reschedule(context.Background(), RescheduleRequest{
		BookingID: original.ID,
		StartsAt:  at(11, 0),
	}, "recep-1")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}

	if result.New.RescheduledFrom == nil || *result.New.RescheduledFrom != original.ID {
		t.Fatalf("lineage missing: %+v", result.New)
	}
	if result.New.Status != StatusScheduled || !result.New.StartsAt.Equal(at(11, 0)) {
		t.Fatalf("replacement = %+v", result.New)
	}
	if result.New.DurationMinutes() != 30 {
		t.Fatalf("duration = %d, want inherited 30", result.New.DurationMinutes())
	}
	if result.Original.Status != StatusCancelled {
		t.Fatalf("original status = %s, want CANCELLED", result.Original.Status)
	}
	if result.Original.CancelReason == nil || *result.Original.CancelReason != ReasonClinic {
		t.Fatalf("cancel reason = %v, want CLINIC", result.Original.CancelReason)
	}

	newHist, _ := f.svc.History(context.Background(), result.New.ID)
	if len(newHist) != 1 || newHist[0].NewStatus != StatusScheduled {
		t.Fatalf("replacement history = %+v", newHist)
	}
	origHist, _ := f.svc.History(context.Background(), original.ID)
	if len(origHist) != 2 || origHist[1].NewStatus != StatusCancelled {
		t.Fatalf("original history = %+v", origHist)
	}

	if got := f.audited.byAction(audit.ActionBookingRescheduled); len(got) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(got))
	}
}

func TestRescheduleIntoOwnSlotAllowed(t *testing.T) {
	f := newFixture(t)

	original, err := f.svc.Create(context.Background(), createReq(9, 0, 30), "recep-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Shift by 15 minutes into a range still overlapping the original. The
	// original is excluded from detection so this must succeed.
	result, err := f.svc.Reschedule(context.Background(), RescheduleRequest{
		BookingID: original.ID,
		StartsAt:  at(9, 15),
	}, "recep-1")
	if err != nil {
		t.Fatalf("Reschedule into overlapping range: %v", err)
	}
	if !result.New.StartsAt.Equal(at(9, 15)) {
		t.Fatalf("replacement starts %v, want 09:15", result.New.StartsAt)
	}
}

func TestRescheduleConflictLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)

	original, err := f.svc.Create(context.Background(), createReq(9, 0, 30), "recep-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), createReq(11, 0, 30), "recep-1"); err != nil {
		t.Fatalf("seed occupant: %v", err)
	}

	_, err = f.svc.Reschedule(context.Background(), RescheduleRequest{
		BookingID: original.ID,
		StartsAt:  at(11, 0),
	}, "recep-1")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}

	// The original is untouched and no replacement booking exists.
	got, _ := f.svc.Get(context.Background(), original.ID)
	if got.Status != StatusScheduled {
		t.Fatalf("original status = %s after failed reschedule", got.Status)
	}
	if len(f.bookings.byID) != 2 {
		t.Fatalf("booking count = %d, want 2", len(f.bookings.byID))
	}

	failed := f.audited.byAction(audit.ActionRescheduleFailed)
	if len(failed) != 1 {
		t.Fatalf("failed-attempt audit entries = %d, want 1", len(failed))
	}
	if _, ok := failed[0].Detail["elapsed_ms"]; !ok {
		t.Fatalf("failed-attempt detail = %+v, want elapsed_ms", failed[0].Detail)
	}
}

func TestRescheduleTerminalAndInFlightRejected(t *testing.T) {
	f := newFixture(t)

	for _, setup := range []struct {
		name string
		to   []Status
	}{
		{"checked in", []Status{StatusCheckedIn}},
		{"in progress", []Status{StatusCheckedIn, StatusInProgress}},
		{"completed", []Status{StatusCheckedIn, StatusInProgress, StatusCompleted}},
	} {
		t.Run(setup.name, func(t *testing.T) {
			b, err := f.svc.Create(context.Background(), createReq(9, 0, 30), "recep-1")
			if err != nil {
				t.Fatalf("seed: %v", err)
			}
			for _, to := range setup.to {
				if _, err := f.svc.Transition(context.Background(), b.ID, to, nil, "prof-10"); err != nil {
					t.Fatalf("setup transition to %s: %v", to, err)
				}
			}
			_, err = f.svc.Reschedule(context.Background(), RescheduleRequest{
				BookingID: b.ID,
				StartsAt:  at(12, 0),
			}, "recep-1")
			if !errors.Is(err, ErrNotReschedulable) {
				t.Fatalf("err = %v, want ErrNotReschedulable", err)
			}
			// Free the slot for the next subtest. Completed bookings are
			// terminal already and no longer occupy it.
			if _, err := f.svc.Cancel(context.Background(), b.ID, ReasonOther, nil, "recep-1"); err != nil && !errors.Is(err, ErrNotCancellable) {
				t.Fatalf("cleanup cancel: %v", err)
			}
		})
	}
}

func TestRescheduleConfirmedBookingAllowed(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), createReq(9, 0, 30), "recep-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.svc.Transition(context.Background(), b.ID, StatusConfirmed, nil, "recep-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.svc.Reschedule(context.Background(), RescheduleRequest{
		BookingID: b.ID,
		StartsAt:  at(13, 0),
	}, "recep-1"); err != nil {
		t.Fatalf("Reschedule of confirmed booking: %v", err)
	}
}

func TestRescheduleOverrides(t *testing.T) {
	f := newFixture(t)
	room := int64(3)
	newProf := int64(11)

	req := createReq(9, 0, 30)
	req.RoomID = &room
	original, err := f.svc.Create(context.Background(), req, "recep-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := f.svc.Reschedule(context.Background(), RescheduleRequest{
		BookingID:       original.ID,
		StartsAt:        at(15, 0),
		DurationMinutes: 60,
		ProfessionalID:  &newProf,
	}, "recep-1")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if result.New.ProfessionalID != newProf {
		t.Fatalf("professional = %d, want %d", result.New.ProfessionalID, newProf)
	}
	if result.New.DurationMinutes() != 60 {
		t.Fatalf("duration = %d, want 60", result.New.DurationMinutes())
	}
	if result.New.RoomID == nil || *result.New.RoomID != room {
		t.Fatalf("room = %v, want inherited %d", result.New.RoomID, room)
	}
}

func TestRescheduleValidation(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), createReq(9, 0, 30), "recep-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := f.svc.Reschedule(context.Background(), RescheduleRequest{BookingID: b.ID}, "recep-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero start: err = %v, want ErrValidation", err)
	}
	if _, err := f.svc.Reschedule(context.Background(), RescheduleRequest{
		BookingID:       b.ID,
		StartsAt:        at(12, 0),
		DurationMinutes: 2000,
	}, "recep-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized duration: err = %v, want ErrValidation", err)
	}
	if _, err := f.svc.Reschedule(context.Background(), RescheduleRequest{BookingID: 999, StartsAt: at(12, 0)}, "recep-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown booking: err = %v, want ErrNotFound", err)
	}
}
