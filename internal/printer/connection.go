package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Connection constants.
const (
	// DefaultReconnectDelay is the fixed wait between a loss and the next
	// connect attempt. Retries continue indefinitely with the same delay.
	DefaultReconnectDelay = 10 * time.Second

	// commandQoS is at-least-once delivery for subscriptions and commands.
	commandQoS = 1

	// reasonOffline is the unavailability reason for a lost link.
	reasonOffline = "Offline"
)

// LinkState is the connection lifecycle state of a Device.
type LinkState string

// Link states.
const (
	LinkDisconnected LinkState = "disconnected"
	LinkConnecting   LinkState = "connecting"
	LinkSubscribed   LinkState = "subscribed"
	LinkDegraded     LinkState = "degraded"
	LinkReconnecting LinkState = "reconnecting"
	LinkClosed       LinkState = "closed"
)

// DeviceOptions holds the collaborators of a Device.
type DeviceOptions struct {
	// DeviceID is the printer's serial, used to namespace topics.
	DeviceID string

	// Transport opens pub/sub sessions.
	Transport Transport

	// Credentials supplies the per-user token for each connect attempt.
	Credentials CredentialSource

	// Capabilities is the device model's capability storage.
	Capabilities CapabilityStore

	// Tasks resolves job metadata. Optional: without it jobs stay unresolved.
	Tasks TaskSource

	// TaskLimit is how many recent tasks to search. Default: 10.
	TaskLimit int

	// Triggers receives print-state transition events. Optional.
	Triggers TriggerDispatcher

	// Availability is told about availability changes. Optional.
	Availability AvailabilityListener

	// ReconnectDelay overrides DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// Device is the connection manager for one printer.
//
// It owns the pub/sub session and the Snapshot. Inbound fragments are
// merged and run through the reaction pipeline one at a time; commands may be
// published concurrently from any goroutine.
//
// Thread Safety: All methods are safe for concurrent use.
type Device struct {
	id             string
	reportTopic    string
	requestTopic   string
	transport      Transport
	creds          CredentialSource
	availability   AvailabilityListener
	reconnectDelay time.Duration
	logger         Logger
	metrics        *deviceMetrics

	materializer *Materializer
	jobs         *JobCorrelator
	notifier     *TransitionNotifier

	// connMu serialises connect, reconnect and teardown.
	connMu sync.Mutex
	closed atomic.Bool

	// gen identifies the live session. Callbacks captured for an older
	// session compare against it and become no-ops after teardown.
	gen atomic.Uint64

	sessMu  sync.RWMutex
	session Session

	timerMu sync.Mutex
	timer   *time.Timer

	// procMu serialises fragment processing and guards the pipeline state.
	procMu   sync.Mutex
	snapshot Snapshot

	statusMu  sync.RWMutex
	available bool
	reason    string
	link      LinkState

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDevice creates a Device. Call Start to connect.
func NewDevice(opts DeviceOptions) (*Device, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	if opts.Capabilities == nil {
		return nil, fmt.Errorf("capability store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Device{
		id:             opts.DeviceID,
		reportTopic:    ReportTopic(opts.DeviceID),
		requestTopic:   RequestTopic(opts.DeviceID),
		transport:      opts.Transport,
		creds:          opts.Credentials,
		availability:   opts.Availability,
		reconnectDelay: delay,
		logger:         logger,
		metrics:        metricsFor(opts.DeviceID),
		materializer:   NewMaterializer(opts.DeviceID, opts.Capabilities, logger),
		jobs:           NewJobCorrelator(opts.DeviceID, opts.Tasks, opts.TaskLimit, logger),
		notifier:       NewTransitionNotifier(opts.DeviceID, opts.Triggers, logger),
		snapshot:       make(Snapshot),
		link:           LinkDisconnected,
		ctx:            ctx,
		cancel:         cancel,
	}
	return d, nil
}

// ID returns the printer's device identifier.
func (d *Device) ID() string {
	return d.id
}

// Start connects and marks the device available. On failure the device is
// marked unavailable and the reconnect loop is armed; the error is returned
// for the caller to log.
func (d *Device) Start(ctx context.Context) error {
	err := d.Connect(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}
	d.setUnavailable(err.Error())
	d.scheduleReconnect()
	return err
}

// Connect opens a session, subscribes to the report topic and requests a
// full state push. Any previous session is torn down first.
func (d *Device) Connect(ctx context.Context) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.closed.Load() {
		return ErrClosed
	}
	if err := d.connectLocked(ctx); err != nil {
		return err
	}
	d.setAvailable()
	return nil
}

// connectLocked performs one connect attempt. Caller must hold connMu.
func (d *Device) connectLocked(ctx context.Context) error {
	d.teardownLocked()
	d.setLink(LinkConnecting)
	gen := d.gen.Add(1)

	creds, err := d.creds.Credentials(ctx)
	if err != nil {
		d.setLink(LinkDisconnected)
		return fmt.Errorf("%w: loading credentials: %w", ErrConnection, err)
	}

	d.logger.Info("connecting to printer", "device_id", d.id)
	session, err := d.transport.Dial(ctx, creds, SessionEvents{
		Offline: func(err error) { d.handleLoss(gen, reasonOffline, err) },
		Error:   func(err error) { d.handleLoss(gen, "Error: "+errorText(err), err) },
	})
	if err != nil {
		d.setLink(LinkDisconnected)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	// The first state of every session is recorded silently.
	d.procMu.Lock()
	d.notifier.Reset()
	d.procMu.Unlock()

	handler := func(topic string, payload []byte) {
		d.handleMessage(gen, topic, payload)
	}
	if err := session.Subscribe(ctx, d.reportTopic, commandQoS, handler); err != nil {
		d.closeSession(session)
		d.setLink(LinkDisconnected)
		return fmt.Errorf("%w: subscribing to %s: %w", ErrConnection, d.reportTopic, err)
	}
	d.logger.Info("subscribed to printer reports", "device_id", d.id, "topic", d.reportTopic)

	d.sessMu.Lock()
	d.session = session
	d.sessMu.Unlock()

	payload, err := json.Marshal(PushAllCommand())
	if err != nil {
		d.teardownLocked()
		d.setLink(LinkDisconnected)
		return fmt.Errorf("%w: encoding pushall: %w", ErrConnection, err)
	}
	if err := session.Publish(ctx, d.requestTopic, payload, commandQoS); err != nil {
		d.teardownLocked()
		d.setLink(LinkDisconnected)
		return fmt.Errorf("%w: requesting full status: %w", ErrConnection, err)
	}
	d.logger.Debug("requested full status", "device_id", d.id)

	d.setLink(LinkSubscribed)
	return nil
}

// teardownLocked closes the live session, if any. Caller must hold connMu.
func (d *Device) teardownLocked() {
	d.sessMu.Lock()
	session := d.session
	d.session = nil
	d.sessMu.Unlock()

	if session == nil {
		return
	}
	d.gen.Add(1)
	d.closeSession(session)
}

func (d *Device) closeSession(session Session) {
	if err := session.Close(); err != nil {
		d.logger.Warn("closing printer session failed", "device_id", d.id, "error", err)
	}
}

// handleLoss reacts to an offline or error signal from session gen.
func (d *Device) handleLoss(gen uint64, reason string, err error) {
	if d.closed.Load() || d.gen.Load() != gen {
		return
	}
	d.logger.Warn("printer link lost", "device_id", d.id, "reason", reason, "error", err)
	d.setUnavailable(reason)
	d.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already pending.
func (d *Device) scheduleReconnect() {
	d.timerMu.Lock()
	defer d.timerMu.Unlock()

	if d.closed.Load() || d.timer != nil {
		return
	}
	d.setLink(LinkReconnecting)
	d.logger.Info("reconnect scheduled", "device_id", d.id, "delay", d.reconnectDelay)
	d.timer = time.AfterFunc(d.reconnectDelay, d.reconnect)
}

// reconnect runs when the reconnect timer fires.
func (d *Device) reconnect() {
	d.timerMu.Lock()
	d.timer = nil
	d.timerMu.Unlock()

	d.connMu.Lock()
	if d.closed.Load() {
		d.connMu.Unlock()
		return
	}
	d.metrics.reconnects.Inc()
	err := d.connectLocked(d.ctx)
	d.connMu.Unlock()

	if err != nil {
		d.logger.Error("reconnecting failed", "device_id", d.id, "error", err)
		d.setUnavailable(err.Error())
		d.scheduleReconnect()
		return
	}
	d.setAvailable()
	d.logger.Info("reconnected", "device_id", d.id)
}

// Close stops the reconnect loop and tears down the session.
// Safe to call multiple times.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.cancel()

	d.timerMu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.timerMu.Unlock()

	d.connMu.Lock()
	d.teardownLocked()
	d.connMu.Unlock()

	d.jobs.Wait()

	d.statusMu.Lock()
	d.available = false
	d.reason = "closed"
	d.link = LinkClosed
	d.statusMu.Unlock()
	d.metrics.available.Set(0)

	d.logger.Info("printer link closed", "device_id", d.id)
	return nil
}

// handleMessage merges one inbound payload and runs the reaction pipeline.
// The transport delivers from a single ordered callback; procMu additionally
// guarantees one fragment is fully processed before the next begins.
func (d *Device) handleMessage(gen uint64, topic string, payload []byte) {
	if d.gen.Load() != gen || topic != d.reportTopic {
		return
	}

	fragment, err := ParseFragment(payload)
	if err != nil {
		d.metrics.parseErrors.Inc()
		d.logger.Warn("dropping malformed report", "device_id", d.id, "error", err)
		return
	}
	normaliseFragment(fragment)

	d.procMu.Lock()
	defer d.procMu.Unlock()

	Merge(d.snapshot, fragment)
	d.metrics.fragments.Inc()

	d.materializer.Apply(d.ctx, d.snapshot)
	d.jobs.Observe(d.ctx, d.snapshot)
	d.notifier.Observe(d.ctx, fragment, d.snapshot)
}

// =============================================================================
// Outbound commands
// =============================================================================

// Publish sends command to the printer's request topic.
// It returns ErrNotConnected when no session is live and does not wait for
// the printer to act on the command.
func (d *Device) Publish(ctx context.Context, command any) error {
	d.sessMu.RLock()
	session := d.session
	d.sessMu.RUnlock()

	if session == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}
	if err := session.Publish(ctx, d.requestTopic, payload, commandQoS); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}
	return nil
}

// SetChamberLight switches the chamber light.
func (d *Device) SetChamberLight(ctx context.Context, on bool) error {
	return d.Publish(ctx, LightCommand(LightChamber, on))
}

// SetWorkLight switches the work light.
func (d *Device) SetWorkLight(ctx context.Context, on bool) error {
	return d.Publish(ctx, LightCommand(LightWork, on))
}

// PausePrint pauses the running print.
func (d *Device) PausePrint(ctx context.Context) error {
	return d.Publish(ctx, PauseCommand())
}

// ResumePrint resumes a paused print.
func (d *Device) ResumePrint(ctx context.Context) error {
	return d.Publish(ctx, ResumeCommand())
}

// StopPrint aborts the running print.
func (d *Device) StopPrint(ctx context.Context) error {
	return d.Publish(ctx, StopCommand())
}

// SetPrintSpeed switches the print speed profile.
func (d *Device) SetPrintSpeed(ctx context.Context, level SpeedLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSpeed, level)
	}
	return d.Publish(ctx, SpeedCommand(level))
}

// SetCapability handles a user write to a settable capability by sending the
// matching command. The capability value itself is updated when the printer
// reports the change back.
func (d *Device) SetCapability(ctx context.Context, field string, value any) error {
	switch field {
	case CapabilityLightChamber, CapabilityLightWork:
		on, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s expects a boolean, got %T", field, value)
		}
		if field == CapabilityLightChamber {
			return d.SetChamberLight(ctx, on)
		}
		return d.SetWorkLight(ctx, on)

	case CapabilityPrintSpeed:
		var raw string
		switch v := value.(type) {
		case string:
			raw = v
		case float64:
			raw = formatNumber(v)
		case int:
			raw = formatNumber(float64(v))
		default:
			return fmt.Errorf("%w: %v", ErrInvalidSpeed, value)
		}
		level, err := ParseSpeedLevel(raw)
		if err != nil {
			return err
		}
		return d.SetPrintSpeed(ctx, level)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCapability, field)
	}
}

// =============================================================================
// Availability
// =============================================================================

// Available reports whether the link is up, and the reason when it is not.
func (d *Device) Available() (bool, string) {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.available, d.reason
}

// LinkState returns the current connection lifecycle state.
func (d *Device) LinkState() LinkState {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.link
}

func (d *Device) setLink(state LinkState) {
	d.statusMu.Lock()
	if d.link != LinkClosed {
		d.link = state
	}
	d.statusMu.Unlock()
}

func (d *Device) setAvailable() {
	d.statusMu.Lock()
	if d.link != LinkSubscribed {
		// A loss arrived between connect and here; stay unavailable.
		d.statusMu.Unlock()
		return
	}
	changed := !d.available
	d.available = true
	d.reason = ""
	d.statusMu.Unlock()

	d.metrics.available.Set(1)
	if changed && d.availability != nil {
		d.availability.AvailabilityChanged(d.id, true, "")
	}
}

func (d *Device) setUnavailable(reason string) {
	d.statusMu.Lock()
	if d.link == LinkSubscribed {
		d.link = LinkDegraded
	}
	changed := d.available || d.reason != reason
	d.available = false
	d.reason = reason
	d.statusMu.Unlock()

	d.metrics.available.Set(0)
	if changed && d.availability != nil {
		d.availability.AvailabilityChanged(d.id, false, reason)
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
