package device

import (
	"context"
	"reflect"
	"sync"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// ValueObserver is told when a capability value actually changes.
// Implementations must not block; the call happens on the printer's
// message pipeline.
type ValueObserver interface {
	CapabilityChanged(deviceID, field string, value any)
}

// ObservedStore wraps a printer.CapabilityStore and notifies observers after
// each successful write whose value differs from the previous one.
//
// The materializer writes every present field on every report; this is
// where that stream is reduced to changes for telemetry and live clients.
type ObservedStore struct {
	printer.CapabilityStore

	deviceID  string
	observers []ValueObserver

	mu   sync.Mutex
	last map[string]any
}

// NewObservedStore wraps inner. Nil observers are ignored.
func NewObservedStore(deviceID string, inner printer.CapabilityStore, observers ...ValueObserver) *ObservedStore {
	s := &ObservedStore{
		CapabilityStore: inner,
		deviceID:        deviceID,
		last:            make(map[string]any),
	}
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
	return s
}

// SetCapabilityValue writes through and notifies on change.
func (s *ObservedStore) SetCapabilityValue(ctx context.Context, field string, value any) error {
	if err := s.CapabilityStore.SetCapabilityValue(ctx, field, value); err != nil {
		return err
	}

	s.mu.Lock()
	previous, seen := s.last[field]
	changed := !seen || !reflect.DeepEqual(previous, value)
	s.last[field] = value
	s.mu.Unlock()

	if !changed {
		return nil
	}
	for _, o := range s.observers {
		o.CapabilityChanged(s.deviceID, field, value)
	}
	return nil
}
