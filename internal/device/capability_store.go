package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// CapabilityStore implements printer.CapabilityStore on SQLite.
//
// The provisioned set is loaded once at construction and kept in memory, so
// HasCapability never touches the database. It only grows: fields are
// never removed.
//
// All methods are thread-safe.
type CapabilityStore struct {
	db       *sql.DB
	deviceID string

	mu          sync.RWMutex
	provisioned map[string]struct{}
}

var _ printer.CapabilityStore = (*CapabilityStore)(nil)

// NewCapabilityStore creates a store for deviceID and loads the fields
// provisioned in earlier runs.
func NewCapabilityStore(ctx context.Context, db *sql.DB, deviceID string) (*CapabilityStore, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	rows, err := db.QueryContext(ctx, "SELECT field FROM capabilities WHERE device_id = ?", deviceID)
	if err != nil {
		return nil, fmt.Errorf("loading provisioned capabilities: %w", err)
	}
	defer rows.Close()

	provisioned := make(map[string]struct{})
	for rows.Next() {
		var field string
		if err := rows.Scan(&field); err != nil {
			return nil, fmt.Errorf("scanning capability: %w", err)
		}
		provisioned[field] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}

	return &CapabilityStore{
		db:          db,
		deviceID:    deviceID,
		provisioned: provisioned,
	}, nil
}

// HasCapability reports whether field has been provisioned.
func (s *CapabilityStore) HasCapability(field string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.provisioned[field]
	return ok
}

// AddCapability provisions field with its display metadata.
// Provisioning an existing field is a no-op.
func (s *CapabilityStore) AddCapability(ctx context.Context, field string, meta printer.CapabilityMeta) error {
	if field == "" {
		return ErrInvalidCapability
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO capabilities (device_id, field, title, unit, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.deviceID,
		field,
		meta.Title,
		meta.Unit,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting capability %s: %w", field, err)
	}

	s.mu.Lock()
	s.provisioned[field] = struct{}{}
	s.mu.Unlock()
	return nil
}

// SetCapabilityValue stores the latest value of a provisioned field.
func (s *CapabilityStore) SetCapabilityValue(ctx context.Context, field string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling %s value: %w", field, err)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE capabilities SET value = ?, updated_at = ? WHERE device_id = ? AND field = ?",
		string(valueJSON),
		time.Now().UTC().Format(time.RFC3339),
		s.deviceID,
		field,
	)
	if err != nil {
		return fmt.Errorf("updating capability %s: %w", field, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrCapabilityNotFound, field)
	}
	return nil
}

// Get returns one provisioned capability.
func (s *CapabilityStore) Get(ctx context.Context, field string) (Capability, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT device_id, field, title, unit, value, created_at, updated_at
		 FROM capabilities
		 WHERE device_id = ? AND field = ?`,
		s.deviceID,
		field,
	)
	c, err := scanCapability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Capability{}, fmt.Errorf("%w: %s", ErrCapabilityNotFound, field)
	}
	return c, err
}

// List returns every provisioned capability, ordered by field.
func (s *CapabilityStore) List(ctx context.Context) ([]Capability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, field, title, unit, value, created_at, updated_at
		 FROM capabilities
		 WHERE device_id = ?
		 ORDER BY field`,
		s.deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying capabilities: %w", err)
	}
	defer rows.Close()

	capabilities := make([]Capability, 0)
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		capabilities = append(capabilities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}
	return capabilities, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapability(row rowScanner) (Capability, error) {
	var (
		c         Capability
		value     sql.NullString
		createdAt string
		updatedAt sql.NullString
	)
	if err := row.Scan(&c.DeviceID, &c.Field, &c.Title, &c.Unit, &value, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Capability{}, err
		}
		return Capability{}, fmt.Errorf("scanning capability: %w", err)
	}

	if value.Valid {
		if err := json.Unmarshal([]byte(value.String), &c.Value); err != nil {
			return Capability{}, fmt.Errorf("unmarshalling %s value: %w", c.Field, err)
		}
	}

	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return Capability{}, err
	}
	c.CreatedAt = ts

	if updatedAt.Valid {
		ts, err := parseTimestamp(updatedAt.String)
		if err != nil {
			return Capability{}, err
		}
		c.UpdatedAt = &ts
	}
	return c, nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return ts, nil
}
