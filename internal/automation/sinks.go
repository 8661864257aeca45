package automation

import (
	"context"

	"github.com/nerrad567/printlink-core/internal/device"
)

// WebSocket channel for trigger broadcasts.
const ChannelPrintTrigger = "print.trigger"

// Broadcaster is the WebSocket hub as seen from here.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// EventWriter records trigger telemetry.
type EventWriter interface {
	WritePrintEvent(deviceID, event, state, jobID string)
}

// EventLogSink persists each trigger to the print event log.
func EventLogSink(repo device.EventRepository) Sink {
	return SinkFunc(func(ctx context.Context, e Event) error {
		return repo.RecordEvent(ctx, device.PrintEvent{
			ID:            e.ID,
			DeviceID:      e.DeviceID,
			Event:         e.Name,
			State:         e.State,
			PreviousState: e.Previous,
			JobID:         e.JobID,
			CreatedAt:     e.FiredAt,
		})
	})
}

// HistorySink records the snapshot the transition happened in.
func HistorySink(repo device.StateHistoryRepository) Sink {
	return SinkFunc(func(ctx context.Context, e Event) error {
		return repo.RecordStateChange(ctx, e.DeviceID, device.State(e.Snapshot), device.StateHistorySourceMQTT)
	})
}

// BroadcastSink publishes each trigger on the print.trigger channel.
func BroadcastSink(hub Broadcaster) Sink {
	return SinkFunc(func(_ context.Context, e Event) error {
		hub.Broadcast(ChannelPrintTrigger, e)
		return nil
	})
}

// TelemetrySink writes each trigger as a time-series point.
func TelemetrySink(w EventWriter) Sink {
	return SinkFunc(func(_ context.Context, e Event) error {
		w.WritePrintEvent(e.DeviceID, e.Name, e.State, e.JobID)
		return nil
	})
}
