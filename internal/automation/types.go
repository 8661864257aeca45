package automation

import (
	"context"
	"time"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// Event is a fired print trigger as delivered to sinks.
type Event struct {
	// ID uniquely identifies this firing (UUID v4).
	ID string `json:"id"`

	DeviceID string `json:"device_id"`

	// Name is the trigger, e.g. "print_state_finish".
	Name string `json:"event"`

	State    string `json:"state"`
	Previous string `json:"previous_state,omitempty"`

	// JobID and JobName come from the snapshot at firing time.
	JobID   string `json:"job_id,omitempty"`
	JobName string `json:"job_name,omitempty"`

	FiredAt time.Time `json:"fired_at"`

	// Snapshot is the printer state the transition was observed in.
	Snapshot printer.Snapshot `json:"-"`
}

// Sink receives fired triggers. Errors are logged by the dispatcher.
type Sink interface {
	HandleTrigger(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

// HandleTrigger calls f.
func (f SinkFunc) HandleTrigger(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
