package agenda

import (
	"context"

	"github.com/clinsuite/agenda/pkg/timerange"
)

// ConflictReport partitions conflicting active bookings by which resource
// caused the clash, and flags whether an active schedule block vetoes the
// candidate range.
type ConflictReport struct {
	Professional []*Booking       `json:"professional,omitempty"`
	Room         []*Booking       `json:"room,omitempty"`
	Both         []*Booking       `json:"both,omitempty"`
	Blocked      bool             `json:"blocked"`
	Blocks       []*ScheduleBlock `json:"blocks,omitempty"`
}

// Len returns the number of conflicting bookings.
func (r *ConflictReport) Len() int {
	return len(r.Professional) + len(r.Room) + len(r.Both)
}

// HasBookingConflict reports whether any active booking overlaps.
func (r *ConflictReport) HasBookingConflict() bool {
	return r.Len() > 0
}

// Clear reports whether the candidate range is fully available.
func (r *ConflictReport) Clear() bool {
	return !r.HasBookingConflict() && !r.Blocked
}

// ConflictDetector finds active bookings and schedule blocks overlapping a
// candidate range. Bookings and blocks are scanned independently; they have
// different resource-scoping shapes.
type ConflictDetector struct {
	bookings BookingRepository
	blocks   BlockRepository
}

func NewConflictDetector(bookings BookingRepository, blocks BlockRepository) *ConflictDetector {
	return &ConflictDetector{bookings: bookings, blocks: blocks}
}

// Detect checks the candidate range for the given resource pair. excludeID,
// when set, removes that booking from consideration so a reschedule does not
// conflict with itself.
func (d *ConflictDetector) Detect(ctx context.Context, professionalID int64, roomID *int64, rng timerange.Range, excludeID *int64) (*ConflictReport, error) {
	report := &ConflictReport{}

	overlapping, err := d.bookings.ListOverlappingActive(ctx, professionalID, roomID, rng, excludeID)
	if err != nil {
		return nil, err
	}
	for _, b := range overlapping {
		profClash := b.ProfessionalID == professionalID
		roomClash := roomID != nil && b.RoomID != nil && *b.RoomID == *roomID
		switch {
		case profClash && roomClash:
			report.Both = append(report.Both, b)
		case profClash:
			report.Professional = append(report.Professional, b)
		case roomClash:
			report.Room = append(report.Room, b)
		}
	}

	blocks, err := d.blocks.ListActiveOverlapping(ctx, rng)
	if err != nil {
		return nil, err
	}
	for _, blk := range blocks {
		if blk.AppliesTo(professionalID, roomID) {
			report.Blocked = true
			report.Blocks = append(report.Blocks, blk)
		}
	}

	return report, nil
}
