package agenda

import (
	"context"
	"sort"
	"time"

	"github.com/clinsuite/agenda/internal/platform/audit"
	"github.com/clinsuite/agenda/pkg/timerange"
)

// EntityState is the outcome of a directory lookup.
type EntityState int

const (
	EntityNotFound EntityState = iota
	EntityInactive
	EntityActive
)

// Directory is the narrow contract to the patient/professional/room registry.
type Directory interface {
	LookupPatient(ctx context.Context, id int64) (EntityState, error)
	LookupProfessional(ctx context.Context, id int64) (EntityState, error)
	LookupRoom(ctx context.Context, id int64) (EntityState, error)
}

// TxRunner executes fn inside one atomic transaction. Every mutation the
// service performs goes through it.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Config carries the service's scheduling defaults.
type Config struct {
	Location     *time.Location
	SlotDuration time.Duration
	SlotStep     time.Duration
}

type Service struct {
	bookings  BookingRepository
	history   HistoryRepository
	blocks    BlockRepository
	hours     WorkingHoursRepository
	directory Directory
	detector  *ConflictDetector
	inTx      TxRunner
	audit     *audit.Sink
	cfg       Config
	now       func() time.Time
}

func NewService(
	bookings BookingRepository,
	history HistoryRepository,
	blocks BlockRepository,
	hours WorkingHoursRepository,
	directory Directory,
	inTx TxRunner,
	sink *audit.Sink,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 30 * time.Minute
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = cfg.SlotDuration
	}
	return &Service{
		bookings:  bookings,
		history:   history,
		blocks:    blocks,
		hours:     hours,
		directory: directory,
		detector:  NewConflictDetector(bookings, blocks),
		inTx:      inTx,
		audit:     sink,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateRequest describes a new booking.
type CreateRequest struct {
	PatientID       int64       `json:"patient_id"`
	ProfessionalID  int64       `json:"professional_id"`
	RoomID          *int64      `json:"room_id,omitempty"`
	Type            BookingType `json:"booking_type"`
	StartsAt        time.Time   `json:"starts_at"`
	DurationMinutes int         `json:"duration_minutes"`
	Reason          *string     `json:"reason,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
}

func (req *CreateRequest) validate() error {
	if req.PatientID <= 0 {
		return validationError("patient_id is required")
	}
	if req.ProfessionalID <= 0 {
		return validationError("professional_id is required")
	}
	if req.RoomID != nil && *req.RoomID <= 0 {
		return validationError("room_id must be positive")
	}
	if !req.Type.Valid() {
		return validationError("unknown booking type %q", req.Type)
	}
	if req.StartsAt.IsZero() {
		return validationError("starts_at is required")
	}
	if req.DurationMinutes < 1 || req.DurationMinutes > 1440 {
		return validationError("duration_minutes must be between 1 and 1440, got %d", req.DurationMinutes)
	}
	return nil
}

// Create validates entities, checks conflicts and blocks, and inserts the
// booking in SCHEDULED together with its first history entry, all in one
// transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest, actorID string) (*Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	booking := &Booking{
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		RoomID:         req.RoomID,
		Type:           req.Type,
		Status:         StatusScheduled,
		StartsAt:       req.StartsAt,
		EndsAt:         req.StartsAt.Add(time.Duration(req.DurationMinutes) * time.Minute),
		Reason:         req.Reason,
		Notes:          req.Notes,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.checkEntities(ctx, req.PatientID, req.ProfessionalID, req.RoomID); err != nil {
			return err
		}

		report, err := s.detector.Detect(ctx, req.ProfessionalID, req.RoomID, booking.Range(), nil)
		if err != nil {
			return err
		}
		if report.HasBookingConflict() {
			return &ConflictError{Report: report}
		}
		if report.Blocked {
			return ErrBlockedBySchedule
		}

		if err := s.bookings.Create(ctx, booking); err != nil {
			return err
		}
		return s.history.Append(ctx, &HistoryEntry{
			BookingID: booking.ID,
			NewStatus: StatusScheduled,
			ActorID:   actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:    audit.ActionBookingCreated,
		BookingID: &booking.ID,
		ActorID:   actorID,
		Detail: map[string]any{
			"professional_id": booking.ProfessionalID,
			"patient_id":      booking.PatientID,
			"starts_at":       booking.StartsAt,
			"ends_at":         booking.EndsAt,
		},
	})
	return booking, nil
}

func (s *Service) checkEntities(ctx context.Context, patientID, professionalID int64, roomID *int64) error {
	checks := []struct {
		lookup func(context.Context, int64) (EntityState, error)
		id     int64
	}{
		{s.directory.LookupPatient, patientID},
		{s.directory.LookupProfessional, professionalID},
	}
	if roomID != nil {
		checks = append(checks, struct {
			lookup func(context.Context, int64) (EntityState, error)
			id     int64
		}{s.directory.LookupRoom, *roomID})
	}

	for _, c := range checks {
		state, err := c.lookup(ctx, c.id)
		if err != nil {
			return err
		}
		switch state {
		case EntityNotFound:
			return ErrEntityNotFound
		case EntityInactive:
			return ErrEntityInactive
		}
	}
	return nil
}

// Transition moves a booking to the next status. The terminal guard runs
// before the transition-table lookup so the two failures stay distinct. The
// write is conditional on the previous status; losing that race surfaces as
// ErrConcurrentModification and is never retried here.
func (s *Service) Transition(ctx context.Context, id int64, to Status, note *string, actorID string) (*Booking, error) {
	if !to.Valid() {
		return nil, validationError("unknown status %q", to)
	}

	var updated *Booking
	err := s.inTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if booking.Status.Terminal() {
			return ErrStateTerminal
		}
		if !booking.Status.CanTransitionTo(to) {
			return ErrTransitionNotAllowed
		}

		now := s.now().UTC()
		ok, err := s.bookings.UpdateStatus(ctx, id, booking.Status, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentModification
		}

		prev := booking.Status
		if err := s.history.Append(ctx, &HistoryEntry{
			BookingID:      id,
			PreviousStatus: &prev,
			NewStatus:      to,
			ActorID:        actorID,
			Note:           note,
		}); err != nil {
			return err
		}

		updated, err = s.bookings.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:    audit.ActionBookingTransition,
		BookingID: &id,
		ActorID:   actorID,
		Detail:    map[string]any{"to": to},
	})
	return updated, nil
}

// Cancel moves any non-terminal booking directly to CANCELLED with a required
// reason. Terminal bookings fail with ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, id int64, reason CancelReason, note *string, actorID string) (*Booking, error) {
	if !reason.Valid() {
		return nil, validationError("unknown cancel reason %q", reason)
	}

	var updated *Booking
	err := s.inTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if booking.Status.Terminal() {
			return ErrNotCancellable
		}

		ok, err := s.bookings.Cancel(ctx, id, booking.Status, reason, note, actorID, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentModification
		}

		prev := booking.Status
		if err := s.history.Append(ctx, &HistoryEntry{
			BookingID:      id,
			PreviousStatus: &prev,
			NewStatus:      StatusCancelled,
			ActorID:        actorID,
			Note:           note,
		}); err != nil {
			return err
		}

		updated, err = s.bookings.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:    audit.ActionBookingCancelled,
		BookingID: &id,
		ActorID:   actorID,
		Detail:    map[string]any{"reason": reason},
	})
	return updated, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id int64) (*Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// ListRequest scopes a day's booking listing.
type ListRequest struct {
	Day            time.Time
	ProfessionalID *int64
	RoomID         *int64
	PatientID      *int64
	Limit          int
	Offset         int
}

// List returns the day's bookings ordered by start time, with the total count
// before pagination.
func (s *Service) List(ctx context.Context, req ListRequest) ([]*Booking, int, error) {
	day := timerange.Day(req.Day.In(s.cfg.Location))
	bookings, err := s.bookings.ListInRange(ctx, day, req.ProfessionalID, req.RoomID)
	if err != nil {
		return nil, 0, err
	}

	if req.PatientID != nil {
		filtered := bookings[:0]
		for _, b := range bookings {
			if b.PatientID == *req.PatientID {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].StartsAt.Equal(bookings[j].StartsAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].StartsAt.Before(bookings[j].StartsAt)
	})

	total := len(bookings)
	if req.Offset >= total {
		return []*Booking{}, total, nil
	}
	bookings = bookings[req.Offset:]
	if req.Limit > 0 && req.Limit < len(bookings) {
		bookings = bookings[:req.Limit]
	}
	return bookings, total, nil
}

// History returns the booking's status trail, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]*HistoryEntry, error) {
	if _, err := s.bookings.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListByBooking(ctx, id)
}

// AvailabilityRequest scopes the slot feed.
type AvailabilityRequest struct {
	ProfessionalID  int64
	RoomID          *int64
	Day             time.Time
	DurationMinutes int
	StepMinutes     int
}

// Availability builds the free-slot feed for one professional and day. An
// inactive or unknown professional yields an empty feed, not an error.
func (s *Service) Availability(ctx context.Context, req AvailabilityRequest) ([]Slot, error) {
	if req.ProfessionalID <= 0 {
		return nil, validationError("professional_id is required")
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = s.cfg.SlotDuration
	}
	step := time.Duration(req.StepMinutes) * time.Minute
	if step <= 0 {
		step = s.cfg.SlotStep
	}

	state, err := s.directory.LookupProfessional(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if state != EntityActive {
		return []Slot{}, nil
	}

	cfg, err := s.hours.GetForProfessional(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	windows := BuildWindows(req.Day, s.cfg.Location, cfg)
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	day := timerange.Day(req.Day.In(s.cfg.Location))

	var busy []timerange.Range
	bookings, err := s.bookings.ListInRange(ctx, day, &req.ProfessionalID, nil)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.Status.Active() {
			busy = append(busy, b.Range())
		}
	}
	if req.RoomID != nil {
		roomBookings, err := s.bookings.ListInRange(ctx, day, nil, req.RoomID)
		if err != nil {
			return nil, err
		}
		for _, b := range roomBookings {
			if b.Status.Active() && b.ProfessionalID != req.ProfessionalID {
				busy = append(busy, b.Range())
			}
		}
	}

	blocks, err := s.blocks.ListActiveOverlapping(ctx, day)
	if err != nil {
		return nil, err
	}
	for _, blk := range blocks {
		if blk.AppliesTo(req.ProfessionalID, req.RoomID) {
			busy = append(busy, blk.Range())
		}
	}

	return FreeSlots(windows, duration, step, busy), nil
}

// SetWeeklyHours replaces a professional's weekly working pattern. Ranges are
// validated up front; the swap runs in one transaction.
func (s *Service) SetWeeklyHours(ctx context.Context, professionalID int64, weekly map[time.Weekday][]MinuteRange) error {
	if professionalID <= 0 {
		return validationError("professional_id is required")
	}
	for weekday, ranges := range weekly {
		if weekday < time.Sunday || weekday > time.Saturday {
			return validationError("unknown weekday %d", weekday)
		}
		for _, mr := range ranges {
			if !mr.Valid() {
				return validationError("invalid range %d-%d for weekday %d", mr.StartMinute, mr.EndMinute, weekday)
			}
		}
	}

	state, err := s.directory.LookupProfessional(ctx, professionalID)
	if err != nil {
		return err
	}
	if state == EntityNotFound {
		return ErrEntityNotFound
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		return s.hours.ReplaceWeekly(ctx, professionalID, weekly)
	})
}

// SetHoursException overrides one date for a professional; an empty range
// list closes the day.
func (s *Service) SetHoursException(ctx context.Context, professionalID int64, date string, ranges []MinuteRange) error {
	if professionalID <= 0 {
		return validationError("professional_id is required")
	}
	if _, err := time.ParseInLocation("2006-01-02", date, s.cfg.Location); err != nil {
		return validationError("date must be YYYY-MM-DD, got %q", date)
	}
	for _, mr := range ranges {
		if !mr.Valid() {
			return validationError("invalid range %d-%d", mr.StartMinute, mr.EndMinute)
		}
	}

	state, err := s.directory.LookupProfessional(ctx, professionalID)
	if err != nil {
		return err
	}
	if state == EntityNotFound {
		return ErrEntityNotFound
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		return s.hours.SetException(ctx, professionalID, date, ranges)
	})
}

// WeeklyHours returns the professional's stored configuration, or nil when
// none exists and the default window applies.
func (s *Service) WeeklyHours(ctx context.Context, professionalID int64) (*WorkingHours, error) {
	if professionalID <= 0 {
		return nil, validationError("professional_id is required")
	}
	return s.hours.GetForProfessional(ctx, professionalID)
}

// CreateBlock registers a schedule exclusion window.
func (s *Service) CreateBlock(ctx context.Context, block *ScheduleBlock) error {
	if !block.StartsAt.Before(block.EndsAt) {
		return validationError("block end must be after start")
	}
	block.Active = true
	return s.blocks.Create(ctx, block)
}

// SetBlockActive enables or disables a block.
func (s *Service) SetBlockActive(ctx context.Context, id int64, active bool) error {
	return s.blocks.SetActive(ctx, id, active)
}

// BlocksForDay lists active blocks intersecting the given day. When a
// professional or room filter is given, only blocks binding that resource
// pair are returned.
func (s *Service) BlocksForDay(ctx context.Context, day time.Time, professionalID, roomID *int64) ([]*ScheduleBlock, error) {
	blocks, err := s.blocks.ListActiveOverlapping(ctx, timerange.Day(day.In(s.cfg.Location)))
	if err != nil {
		return nil, err
	}
	if professionalID == nil && roomID == nil {
		return blocks, nil
	}

	var prof int64
	if professionalID != nil {
		prof = *professionalID
	}
	filtered := blocks[:0]
	for _, b := range blocks {
		if b.AppliesTo(prof, roomID) {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}
