// Package api implements the local HTTP REST API and WebSocket server.
//
// This package provides:
//   - Read endpoints for printer status, capabilities, AMS units, the current
//     cover image, fired events, state history and the command audit trail
//   - Command endpoints for print control, lights and print speed, each
//     recorded in the audit trail
//   - A WebSocket hub broadcasting capability changes, print triggers and
//     availability changes
//   - Prometheus metrics on /metrics
//   - Middleware stack (request ID, logging, request metrics, recovery, CORS,
//     body limit)
//
// # Graceful Degradation
//
// The server runs while the printer link is down: reads answer from the
// last known state and commands fail with 503 until the link is back.
package api
