package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrDispatcherClosed is reported when a trigger arrives after Close.
	ErrDispatcherClosed = errors.New("automation: dispatcher closed")

	// ErrQueueFull is reported when a trigger is dropped because the
	// delivery queue is full.
	ErrQueueFull = errors.New("automation: trigger queue full")
)
