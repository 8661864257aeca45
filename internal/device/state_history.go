package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourceMQTT    = "mqtt"
	StateHistorySourceCommand = "command"
)

// StateHistoryEntry represents a single printer state record.
//
// Each entry stores the full snapshot at the time of a print-state
// transition. This provides a local audit trail even when the time-series
// database is unavailable.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the printer serial.
	DeviceID string `json:"device_id"`

	// State is the JSON snapshot of the printer state.
	State State `json:"state"`

	// Source identifies how the change was recorded (mqtt, command).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves printer state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a snapshot for deviceID.
	RecordStateChange(ctx context.Context, deviceID string, state State, source string) error

	// GetHistory returns recent entries for deviceID, newest first.
	// limit is clamped to the implementation's bounds.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
