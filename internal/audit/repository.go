// Package audit records control commands sent to the printer and answers
// queries over that trail.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Command outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Entry is one audited command.
type Entry struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Command   string         `json:"command"`
	Params    map[string]any `json:"params,omitempty"`
	Outcome   string         `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Source    string         `json:"source"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	DeviceID string // optional
	Command  string // optional: pause, resume, stop, light.chamber, light.work, speed
	Outcome  string // optional: sent, failed
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the command audit operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in the command_audit table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID, Source and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.DeviceID == "" || entry.Command == "" {
		return fmt.Errorf("audit entry needs device_id and command")
	}
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()[:8]
	}
	if entry.Source == "" {
		entry.Source = "api"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var paramsJSON *string
	if entry.Params != nil {
		b, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("marshalling command params: %w", err)
		}
		s := string(b)
		paramsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, device_id, command, params, outcome, error, source, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DeviceID, entry.Command, paramsJSON, entry.Outcome,
		nullableString(entry.Error), entry.Source, nullableString(entry.RequestID),
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command audit entry: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // WHERE clause assembly plus row decoding
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM command_audit " + where //nolint:gosec // parameterised conditions only
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command audit entries: %w", err)
	}

	query := "SELECT id, device_id, command, params, outcome, error, source, request_id, created_at FROM command_audit " + //nolint:gosec // parameterised conditions only
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command audit: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var params, errText, requestID sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Command, &params, &e.Outcome,
			&errText, &e.Source, &requestID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command audit entry: %w", err)
		}
		e.Error = errText.String
		e.RequestID = requestID.String
		if params.Valid && params.String != "" {
			var decoded map[string]any
			if json.Unmarshal([]byte(params.String), &decoded) == nil {
				e.Params = decoded
			}
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command audit timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command audit: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
