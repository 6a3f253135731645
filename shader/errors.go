package shader

import "errors"

// Shared sentinel errors used across device, texture, and buffer
// operations.
var (
	// ErrNotInitialized is returned when an operation requires an open
	// Device but it has not been opened yet.
	ErrNotInitialized = errors.New("shader: device not initialized")

	// ErrInvalidDimensions is returned when a width or height is <= 0.
	ErrInvalidDimensions = errors.New("shader: invalid dimensions")

	// ErrNilDevice is returned when an operation requires a non-nil Device
	// argument but received nil.
	ErrNilDevice = errors.New("shader: device is nil")
)
