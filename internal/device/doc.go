// Package device persists what PrintLink learns about a printer.
//
// Three SQLite-backed stores live here:
//
//   - CapabilityStore: the provisioned capability fields and their latest
//     values. It implements printer.CapabilityStore and is what the
//     capability materializer writes to.
//   - SQLiteStateHistoryRepository: a snapshot recorded on each print-state
//     transition, kept as a local audit trail.
//   - SQLiteEventRepository: every fired print trigger.
//
// ObservedStore decorates a capability store so that telemetry and live
// clients hear about value changes without the materializer knowing they
// exist.
//
// Schema lives in the top-level migrations package.
package device
