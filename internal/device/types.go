package device

import (
	"time"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// State is a JSON-shaped printer state snapshot.
type State map[string]any

// Capability is one provisioned capability field with its latest value.
type Capability struct {
	DeviceID  string     `json:"device_id"`
	Field     string     `json:"field"`
	Title     string     `json:"title"`
	Unit      string     `json:"unit,omitempty"`
	Value     any        `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Meta returns the provisioning metadata of the capability.
func (c Capability) Meta() printer.CapabilityMeta {
	return printer.CapabilityMeta{Title: c.Title, Unit: c.Unit}
}

// Logger defines the logging interface used by this package.
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
