package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/printlink-core/internal/printer"
)

const (
	defaultQueueSize   = 64
	defaultSinkTimeout = 10 * time.Second
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// QueueSize bounds triggers awaiting delivery. Zero means 64.
	QueueSize int

	// SinkTimeout bounds each sink call. Zero means 10 seconds.
	SinkTimeout time.Duration

	Logger Logger
}

type namedSink struct {
	name string
	sink Sink
}

// Dispatcher fans fired triggers out to registered sinks.
//
// Fire never blocks the caller: events are queued and delivered in order
// by a single worker. Every sink sees every event; a failing or panicking
// sink is logged and does not stop the others.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	logger      Logger
	sinkTimeout time.Duration

	sinkMu sync.RWMutex
	sinks  []namedSink

	queue chan Event
	done  chan struct{}

	closeMu sync.RWMutex
	closed  bool
	once    sync.Once
}

var _ printer.TriggerDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher and starts its delivery worker.
// Call Close to drain the queue and stop it.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	d := &Dispatcher{
		logger:      opts.Logger,
		sinkTimeout: opts.SinkTimeout,
		queue:       make(chan Event, opts.QueueSize),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

// Register adds a sink. Sinks receive events in registration order.
func (d *Dispatcher) Register(name string, sink Sink) {
	if sink == nil {
		return
	}
	d.sinkMu.Lock()
	d.sinks = append(d.sinks, namedSink{name: name, sink: sink})
	d.sinkMu.Unlock()
}

// Fire queues a trigger for delivery. It implements printer.TriggerDispatcher.
func (d *Dispatcher) Fire(_ context.Context, trigger printer.TriggerEvent) {
	event := newEvent(trigger)
	if err := d.enqueue(event); err != nil {
		d.logger.Warn("trigger dropped",
			"device_id", event.DeviceID,
			"event", event.Name,
			"error", err,
		)
	}
}

func (d *Dispatcher) enqueue(event Event) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting triggers and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		close(d.queue)
		d.closeMu.Unlock()
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sinkMu.RLock()
	sinks := append([]namedSink(nil), d.sinks...)
	d.sinkMu.RUnlock()

	d.logger.Info("print trigger fired",
		"device_id", event.DeviceID,
		"event", event.Name,
		"state", event.State,
		"previous", event.Previous,
		"event_id", event.ID,
	)

	for _, s := range sinks {
		if err := d.call(s, event); err != nil {
			d.logger.Error("trigger sink failed",
				"sink", s.name,
				"event", event.Name,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
}

// call runs one sink with a timeout and panic recovery.
func (d *Dispatcher) call(s namedSink, event Event) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sink.HandleTrigger(ctx, event)
}

func newEvent(t printer.TriggerEvent) Event {
	firedAt := t.FiredAt
	if firedAt.IsZero() {
		firedAt = time.Now().UTC()
	}
	jobID, _ := t.Snapshot.Identifier("print", "job_id")
	jobName, _ := t.Snapshot.String("print", "subtask_name")

	return Event{
		ID:       uuid.NewString(),
		DeviceID: t.DeviceID,
		Name:     t.Name,
		State:    t.State,
		Previous: t.Previous,
		JobID:    jobID,
		JobName:  jobName,
		FiredAt:  firedAt,
		Snapshot: t.Snapshot,
	}
}
