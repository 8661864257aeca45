package printer

import "errors"

// Domain-specific errors for printer operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnection is returned when the transport cannot be opened or the
	// subscribe handshake does not complete.
	ErrConnection = errors.New("printer: connection failed")

	// ErrParse is returned when an inbound payload is not a JSON object.
	ErrParse = errors.New("printer: malformed report")

	// ErrNotConnected is returned when a command is sent without a live session.
	ErrNotConnected = errors.New("printer: not connected")

	// ErrStore wraps failures reported by the capability store.
	ErrStore = errors.New("printer: capability store failure")

	// ErrClosed is returned by operations on a Device after Close.
	ErrClosed = errors.New("printer: device closed")

	// ErrInvalidSpeed is returned for print speed levels outside 1-4.
	ErrInvalidSpeed = errors.New("printer: invalid print speed level")

	// ErrUnknownCapability is returned when a settable capability is not recognised.
	ErrUnknownCapability = errors.New("printer: capability is not settable")

	// ErrNoCoverImage is returned when the current job has no cover image.
	ErrNoCoverImage = errors.New("printer: no cover image for current job")

	// ErrAMSNotFound is returned when the requested AMS unit is not in the snapshot.
	ErrAMSNotFound = errors.New("printer: AMS unit not found")
)
