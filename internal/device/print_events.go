package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PrintEvent is a fired print trigger as persisted locally.
type PrintEvent struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"device_id"`
	Event         string    `json:"event"`
	State         string    `json:"state"`
	PreviousState string    `json:"previous_state,omitempty"`
	JobID         string    `json:"job_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventRepository stores fired print events.
type EventRepository interface {
	RecordEvent(ctx context.Context, event PrintEvent) error
	ListEvents(ctx context.Context, deviceID string, limit int) ([]PrintEvent, error)
}

// SQLiteEventRepository implements EventRepository on the print_events table.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates a new SQLite print event repository.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// RecordEvent inserts event. ID, DeviceID and Event are required; a zero
// CreatedAt is replaced with the current time.
func (r *SQLiteEventRepository) RecordEvent(ctx context.Context, event PrintEvent) error {
	if event.ID == "" || event.DeviceID == "" || event.Event == "" {
		return ErrInvalidEvent
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO print_events (id, device_id, event, state, previous_state, job_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.DeviceID,
		event.Event,
		event.State,
		event.PreviousState,
		event.JobID,
		event.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting print event: %w", err)
	}
	return nil
}

// ListEvents returns recent events for a printer, newest first.
// limit defaults to 50 and is capped at 200.
func (r *SQLiteEventRepository) ListEvents(ctx context.Context, deviceID string, limit int) ([]PrintEvent, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, event, state, previous_state, job_id, created_at
		 FROM print_events
		 WHERE device_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying print events: %w", err)
	}
	defer rows.Close()

	events := make([]PrintEvent, 0, limit)
	for rows.Next() {
		var (
			e         PrintEvent
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Event, &e.State, &e.PreviousState, &e.JobID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning print event: %w", err)
		}
		ts, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = ts
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating print events: %w", err)
	}
	return events, nil
}
