// Package printer maintains a live model of a single cloud-connected 3D printer.
//
// The printer pushes partial JSON status reports ("fragments") over a
// persistent MQTT session. This package owns that session and folds every
// fragment into one cumulative Snapshot, then runs a fixed reaction pipeline:
//
//	fragment → Merge → Materializer → JobCorrelator → TransitionNotifier
//
// # Components
//
//   - Merge: in-place deep merge of a fragment into the Snapshot
//   - Device: connection lifecycle (connect, subscribe, pushall, loss
//     detection, fixed-delay reconnect) and outbound commands
//   - Materializer: provisions capability fields on first sight and writes
//     their derived values to a CapabilityStore
//   - JobCorrelator: detects job changes and resolves task metadata and the
//     cover image in the background
//   - TransitionNotifier: fires one trigger per print-state transition,
//     ignoring the first state seen after each (re)connect
//
// # Concurrency
//
// Fragments for one Device are processed strictly one at a time; the merge
// and the whole pipeline finish before the next fragment starts. Only the
// reconnect timer and the task/cover lookups run alongside message handling,
// and they never touch the Snapshot.
//
// # Usage
//
//	dev, err := printer.NewDevice(printer.DeviceOptions{
//	    DeviceID:     "01S00C123456789",
//	    Transport:    transport,
//	    Credentials:  creds,
//	    Capabilities: store,
//	    Tasks:        tasks,
//	    Triggers:     dispatcher,
//	    Logger:       log,
//	})
//	if err := dev.Start(ctx); err != nil {
//	    log.Warn("printer unavailable, retrying", "error", err)
//	}
//	defer dev.Close()
package printer
