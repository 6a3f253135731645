package capture

import "errors"

var (
	// ErrNoSeeds is returned when Config.Seeds is empty.
	ErrNoSeeds = errors.New("capture: no mode seeds configured")

	// ErrAllSeedsFailed is returned when every seed failed to open or stream.
	ErrAllSeedsFailed = errors.New("capture: all mode seeds failed to open")

	// ErrDeviceOpen is returned when the platform device cannot be opened.
	ErrDeviceOpen = errors.New("capture: device open failed")

	// ErrNotSupported is returned on platforms without a capture backend.
	ErrNotSupported = errors.New("capture: not supported on this platform")
)
