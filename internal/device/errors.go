package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrCapabilityNotFound) {
//	    // handle not found case
//	}
var (
	// ErrCapabilityNotFound is returned when a capability field is not provisioned.
	ErrCapabilityNotFound = errors.New("device: capability not found")

	// ErrInvalidCapability is returned when a capability field name is empty.
	ErrInvalidCapability = errors.New("device: invalid capability")

	// ErrDeviceIDRequired is returned when a device ID is missing.
	ErrDeviceIDRequired = errors.New("device: device id is required")

	// ErrInvalidEvent is returned when a print event is missing required fields.
	ErrInvalidEvent = errors.New("device: invalid print event")
)
