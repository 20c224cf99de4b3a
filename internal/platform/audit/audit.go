// Package audit records who did what to which booking. Entries are written
// after the owning transaction commits; a failed write is logged and dropped,
// it never rolls back the clinical change it describes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Actions recorded by the scheduling engine.
const (
	ActionBookingCreated     = "booking.created"
	ActionBookingTransition  = "booking.transitioned"
	ActionBookingCancelled   = "booking.cancelled"
	ActionBookingRescheduled = "booking.rescheduled"
	ActionRescheduleFailed   = "booking.reschedule_failed"
)

// Entry is a single audit record.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	BookingID  *int64         `json:"booking_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	ActorRoles []string       `json:"actor_roles,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// RecorderFunc is a function adapter for Recorder.
type RecorderFunc func(ctx context.Context, entry Entry) error

func (f RecorderFunc) Record(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// PGRecorder writes audit entries to the audit_log table.
type PGRecorder struct {
	pool *pgxpool.Pool
}

func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
	}

	const query = `
		INSERT INTO audit_log (
			id, action, booking_id, actor_id, actor_roles, detail,
			request_id, ip_address, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Action, entry.BookingID, entry.ActorID, entry.ActorRoles,
		detail, entry.RequestID, entry.IPAddress, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Sink wraps a Recorder so that persistence failures are logged instead of
// propagated.
type Sink struct {
	recorder Recorder
	logger   zerolog.Logger
}

func NewSink(recorder Recorder, logger zerolog.Logger) *Sink {
	return &Sink{recorder: recorder, logger: logger}
}

// Record writes the entry through the underlying recorder. Errors are logged
// and swallowed. With no recorder configured the entry goes to the log only.
func (s *Sink) Record(ctx context.Context, entry Entry) {
	if s.recorder == nil {
		s.logger.Info().
			Str("action", entry.Action).
			Str("actor_id", entry.ActorID).
			Interface("detail", entry.Detail).
			Msg("audit")
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Error().
			Err(err).
			Str("action", entry.Action).
			Str("actor_id", entry.ActorID).
			Msg("audit write failed")
	}
}
