// Package automation delivers fired print triggers.
//
// The printer's transition notifier hands each recognised print-state
// transition to a Dispatcher, which stamps it with a UUID and fans it out
// to sinks on a background worker:
//
//	TransitionNotifier ──Fire──▶ Dispatcher ──▶ EventLogSink   (SQLite)
//	                                        ├─▶ HistorySink    (SQLite)
//	                                        ├─▶ TelemetrySink  (InfluxDB)
//	                                        └─▶ BroadcastSink  (WebSocket)
//
// Sink failures are logged and never reach the printer link.
//
// # Usage
//
//	triggers := automation.NewDispatcher(automation.DispatcherOptions{Logger: log})
//	defer triggers.Close()
//	triggers.Register("event_log", automation.EventLogSink(events))
//	triggers.Register("websocket", automation.BroadcastSink(hub))
package automation
