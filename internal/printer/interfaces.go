package printer

import (
	"context"
	"time"
)

// Logger is the structured logger used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// =============================================================================
// Transport boundary
// =============================================================================

// Credentials are the device-scoped credentials for one transport session.
type Credentials struct {
	Username string
	Password string
}

// CredentialSource supplies fresh credentials for every connect attempt.
// Tokens may be refreshed between reconnects, so they are never cached here.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// MessageHandler receives inbound payloads. The transport must invoke it
// from a single ordered callback: one payload at a time, in arrival order.
type MessageHandler func(topic string, payload []byte)

// SessionEvents are the loss signals a session reports.
// Both callbacks may be nil.
type SessionEvents struct {
	// Offline is called when keepalive fails or the broker drops the link.
	Offline func(err error)

	// Error is called for explicit protocol errors.
	Error func(err error)
}

// Transport opens pub/sub sessions against the cloud broker.
type Transport interface {
	Dial(ctx context.Context, creds Credentials, events SessionEvents) (Session, error)
}

// Session is one live pub/sub connection.
type Session interface {
	// Subscribe registers handler for topic and waits for the broker's ack.
	Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error

	// Publish sends payload and waits for transport-level delivery only.
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error

	// Close unsubscribes, detaches every callback and closes the link.
	// After Close returns no handler or event callback fires again.
	Close() error
}

// =============================================================================
// Reaction pipeline collaborators
// =============================================================================

// CapabilityMeta describes a capability field when it is first provisioned.
type CapabilityMeta struct {
	Title string `json:"title"`
	Unit  string `json:"unit,omitempty"`
}

// CapabilityStore is the device model's capability storage.
//
// HasCapability must be cheap: it is consulted on every reaction.
type CapabilityStore interface {
	HasCapability(field string) bool
	AddCapability(ctx context.Context, field string, meta CapabilityMeta) error
	SetCapabilityValue(ctx context.Context, field string, value any) error
}

// Task is one entry of the cloud task list.
type Task struct {
	ID    string
	Name  string
	Cover string
}

// TaskSource resolves job metadata from the cloud REST API.
type TaskSource interface {
	GetTasks(ctx context.Context, deviceID string, limit int) ([]Task, error)
	FetchBinary(ctx context.Context, url string) ([]byte, error)
}

// TriggerEvent is emitted once per recognised print-state transition.
type TriggerEvent struct {
	DeviceID string
	Name     string
	State    string
	Previous string
	Snapshot Snapshot
	FiredAt  time.Time
}

// TriggerDispatcher delivers trigger events downstream.
// Fire is fire-and-forget; implementations log their own failures.
type TriggerDispatcher interface {
	Fire(ctx context.Context, event TriggerEvent)
}

// AvailabilityListener is told whenever the device becomes available or
// unavailable. reason is empty when available.
type AvailabilityListener interface {
	AvailabilityChanged(deviceID string, available bool, reason string)
}
