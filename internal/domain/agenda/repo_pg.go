package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinsuite/agenda/internal/platform/db"
	"github.com/clinsuite/agenda/pkg/timerange"
)

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

func (r *bookingRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const bookingCols = `id, patient_id, professional_id, room_id, booking_type, status,
	starts_at, ends_at, reason, notes, rescheduled_from_id,
	checked_in_at, started_at, completed_at, cancelled_at, cancel_reason, cancelled_by,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.PatientID, &b.ProfessionalID, &b.RoomID, &b.Type, &b.Status,
		&b.StartsAt, &b.EndsAt, &b.Reason, &b.Notes, &b.RescheduledFrom,
		&b.CheckedInAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt, &b.CancelReason, &b.CancelledBy,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO booking (patient_id, professional_id, room_id, booking_type, status,
			starts_at, ends_at, reason, notes, rescheduled_from_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		b.PatientID, b.ProfessionalID, b.RoomID, b.Type, b.Status,
		b.StartsAt, b.EndsAt, b.Reason, b.Notes, b.RescheduledFrom).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id int64) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
}

func (r *bookingRepoPG) ListOverlappingActive(ctx context.Context, professionalID int64, roomID *int64, rng timerange.Range, excludeID *int64) ([]*Booking, error) {
	query := `SELECT ` + bookingCols + ` FROM booking
		WHERE status = ANY($1)
		  AND starts_at < $2 AND $3 < ends_at
		  AND (professional_id = $4 OR ($5::bigint IS NOT NULL AND room_id = $5))`
	args := []any{activeStatusStrings(), rng.End, rng.Start, professionalID, roomID}
	if excludeID != nil {
		query += ` AND id <> $6`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY starts_at`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *bookingRepoPG) UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	set := `status = $3, updated_at = NOW()`
	switch to {
	case StatusCheckedIn:
		set += `, checked_in_at = $4`
	case StatusInProgress:
		set += `, started_at = $4`
	case StatusCompleted:
		// Backfill started_at for bookings force-completed without passing
		// through IN_PROGRESS.
		set += `, completed_at = $4, started_at = COALESCE(started_at, $4)`
	}

	query := `UPDATE booking SET ` + set + ` WHERE id = $1 AND status = $2`
	args := []any{id, from, to}
	if to == StatusCheckedIn || to == StatusInProgress || to == StatusCompleted {
		args = append(args, at)
	}

	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepoPG) Cancel(ctx context.Context, id int64, from Status, reason CancelReason, note *string, actorID string, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE booking
		SET status = $3, cancelled_at = $4, cancel_reason = $5, cancelled_by = $6,
		    notes = COALESCE($7, notes), updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, StatusCancelled, at, reason, actorID, note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepoPG) ListInRange(ctx context.Context, rng timerange.Range, professionalID, roomID *int64) ([]*Booking, error) {
	query := `SELECT ` + bookingCols + ` FROM booking
		WHERE starts_at < $1 AND $2 < ends_at`
	args := []any{rng.End, rng.Start}
	idx := 3
	if professionalID != nil {
		query += fmt.Sprintf(` AND professional_id = $%d`, idx)
		args = append(args, *professionalID)
		idx++
	}
	if roomID != nil {
		query += fmt.Sprintf(` AND room_id = $%d`, idx)
		args = append(args, *roomID)
		idx++
	}
	query += ` ORDER BY starts_at`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *bookingRepoPG) ListUnconfirmed(ctx context.Context, horizon time.Time) ([]*Booking, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE status = $1 AND starts_at > NOW() AND starts_at <= $2
		ORDER BY starts_at`,
		StatusScheduled, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]*Booking, error) {
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func activeStatusStrings() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

// =========== History Repository ===========

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository { return &historyRepoPG{pool: pool} }

func (r *historyRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

func (r *historyRepoPG) Append(ctx context.Context, e *HistoryEntry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO booking_history (booking_id, previous_status, new_status, actor_id, note)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		e.BookingID, e.PreviousStatus, e.NewStatus, e.ActorID, e.Note).
		Scan(&e.ID, &e.CreatedAt)
}

func (r *historyRepoPG) ListByBooking(ctx context.Context, bookingID int64) ([]*HistoryEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, booking_id, previous_status, new_status, actor_id, note, created_at
		FROM booking_history WHERE booking_id = $1 ORDER BY created_at, id`,
		bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.PreviousStatus, &e.NewStatus, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

// =========== Schedule Block Repository ===========

type blockRepoPG struct{ pool *pgxpool.Pool }

func NewBlockRepoPG(pool *pgxpool.Pool) BlockRepository { return &blockRepoPG{pool: pool} }

func (r *blockRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const blockCols = `id, professional_id, room_id, starts_at, ends_at, reason, active, created_at`

func scanBlock(row pgx.Row) (*ScheduleBlock, error) {
	var b ScheduleBlock
	err := row.Scan(&b.ID, &b.ProfessionalID, &b.RoomID, &b.StartsAt, &b.EndsAt, &b.Reason, &b.Active, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *blockRepoPG) Create(ctx context.Context, b *ScheduleBlock) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_block (professional_id, room_id, starts_at, ends_at, reason, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		b.ProfessionalID, b.RoomID, b.StartsAt, b.EndsAt, b.Reason, b.Active).
		Scan(&b.ID, &b.CreatedAt)
}

func (r *blockRepoPG) GetByID(ctx context.Context, id int64) (*ScheduleBlock, error) {
	return scanBlock(r.conn(ctx).QueryRow(ctx, `SELECT `+blockCols+` FROM schedule_block WHERE id = $1`, id))
}

func (r *blockRepoPG) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE schedule_block SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *blockRepoPG) ListActiveOverlapping(ctx context.Context, rng timerange.Range) ([]*ScheduleBlock, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockCols+` FROM schedule_block
		WHERE active AND starts_at < $1 AND $2 < ends_at
		ORDER BY starts_at`,
		rng.End, rng.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ScheduleBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// =========== Working Hours Repository ===========

type workingHoursRepoPG struct{ pool *pgxpool.Pool }

func NewWorkingHoursRepoPG(pool *pgxpool.Pool) WorkingHoursRepository {
	return &workingHoursRepoPG{pool: pool}
}

func (r *workingHoursRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

// GetForProfessional assembles the weekly pattern and exceptions. An
// exception row with NULL minutes marks the whole day unavailable.
func (r *workingHoursRepoPG) GetForProfessional(ctx context.Context, professionalID int64) (*WorkingHours, error) {
	cfg := &WorkingHours{
		ProfessionalID: professionalID,
		Weekly:         make(map[time.Weekday][]MinuteRange),
		Exceptions:     make(map[string][]MinuteRange),
	}
	found := false

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM working_hours WHERE professional_id = $1
		ORDER BY weekday, start_minute`,
		professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var weekday int
		var mr MinuteRange
		if err := rows.Scan(&weekday, &mr.StartMinute, &mr.EndMinute); err != nil {
			return nil, err
		}
		found = true
		wd := time.Weekday(weekday)
		cfg.Weekly[wd] = append(cfg.Weekly[wd], mr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exRows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(on_date, 'YYYY-MM-DD'), start_minute, end_minute
		FROM working_hours_exception WHERE professional_id = $1
		ORDER BY on_date, start_minute`,
		professionalID)
	if err != nil {
		return nil, err
	}
	defer exRows.Close()
	for exRows.Next() {
		var day string
		var start, end *int
		if err := exRows.Scan(&day, &start, &end); err != nil {
			return nil, err
		}
		found = true
		if _, ok := cfg.Exceptions[day]; !ok {
			cfg.Exceptions[day] = []MinuteRange{}
		}
		if start != nil && end != nil {
			cfg.Exceptions[day] = append(cfg.Exceptions[day], MinuteRange{StartMinute: *start, EndMinute: *end})
		}
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}
	return cfg, nil
}

func (r *workingHoursRepoPG) ReplaceWeekly(ctx context.Context, professionalID int64, weekly map[time.Weekday][]MinuteRange) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM working_hours WHERE professional_id = $1`, professionalID); err != nil {
		return err
	}
	for weekday, ranges := range weekly {
		for _, mr := range ranges {
			_, err := q.Exec(ctx, `
				INSERT INTO working_hours (professional_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)`,
				professionalID, int(weekday), mr.StartMinute, mr.EndMinute)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *workingHoursRepoPG) SetException(ctx context.Context, professionalID int64, date string, ranges []MinuteRange) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `
		DELETE FROM working_hours_exception
		WHERE professional_id = $1 AND on_date = $2::date`,
		professionalID, date); err != nil {
		return err
	}
	if len(ranges) == 0 {
		// A bare row with NULL minutes closes the whole day.
		_, err := q.Exec(ctx, `
			INSERT INTO working_hours_exception (professional_id, on_date)
			VALUES ($1, $2::date)`,
			professionalID, date)
		return err
	}
	for _, mr := range ranges {
		_, err := q.Exec(ctx, `
			INSERT INTO working_hours_exception (professional_id, on_date, start_minute, end_minute)
			VALUES ($1, $2::date, $3, $4)`,
			professionalID, date, mr.StartMinute, mr.EndMinute)
		if err != nil {
			return err
		}
	}
	return nil
}
