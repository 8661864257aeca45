package printer

import (
	"context"
	"time"
)

// Discrete print states reported in print.gcode_state (normalised upper case).
const (
	StateFailed  = "FAILED"
	StateFinish  = "FINISH"
	StateIdle    = "IDLE"
	StateInit    = "INIT"
	StateOffline = "OFFLINE"
	StatePause   = "PAUSE"
	StatePrepare = "PREPARE"
	StateRunning = "RUNNING"
	StateSlicing = "SLICING"
	StateUnknown = "UNKNOWN"
)

// Trigger names fired on print-state transitions.
const (
	TriggerPrintFailed  = "print_state_failed"
	TriggerPrintFinish  = "print_state_finish"
	TriggerPrintPaused  = "print_state_paused"
	TriggerPrintRunning = "print_state_running"
)

// stateTriggers maps the recognised states to the trigger they fire.
var stateTriggers = map[string]string{
	StateFailed:  TriggerPrintFailed,
	StateFinish:  TriggerPrintFinish,
	StatePause:   TriggerPrintPaused,
	StateRunning: TriggerPrintRunning,
}

// TransitionNotifier fires one trigger per print-state transition.
//
// The first state observed after Reset is recorded silently: there is no
// prior state to transition from, and reconnects would otherwise re-fire
// the current state every time.
type TransitionNotifier struct {
	deviceID   string
	dispatcher TriggerDispatcher
	logger     Logger
	metrics    *deviceMetrics
	now        func() time.Time

	last string
}

// NewTransitionNotifier creates a notifier delivering to dispatcher.
// A nil dispatcher records transitions without firing anything.
func NewTransitionNotifier(deviceID string, dispatcher TriggerDispatcher, logger Logger) *TransitionNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TransitionNotifier{
		deviceID:   deviceID,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metricsFor(deviceID),
		now:        time.Now,
	}
}

// Observe compares the print state carried by update to the last one
// recorded. Updates without a print state are ignored, so a state left in
// snapshot from an earlier session is never mistaken for a fresh report.
// snapshot is the merged state handed to the fired event.
func (n *TransitionNotifier) Observe(ctx context.Context, update, snapshot Snapshot) {
	state, ok := update.String(sectionPrint, fieldGcodeState)
	if !ok || state == "" || state == n.last {
		return
	}

	previous := n.last
	n.last = state
	n.logger.Info("print state changed", "device_id", n.deviceID, "state", state, "previous", previous)

	if previous == "" {
		return
	}

	name, recognised := stateTriggers[state]
	if !recognised || n.dispatcher == nil {
		return
	}

	n.metrics.transitions.WithLabelValues(name).Inc()
	n.dispatcher.Fire(ctx, TriggerEvent{
		DeviceID: n.deviceID,
		Name:     name,
		State:    state,
		Previous: previous,
		Snapshot: snapshot.Clone(),
		FiredAt:  n.now().UTC(),
	})
}

// State returns the last recorded print state ("" before the first one).
func (n *TransitionNotifier) State() string {
	return n.last
}

// Reset forgets the recorded state so the next observation is silent.
func (n *TransitionNotifier) Reset() {
	n.last = ""
}
