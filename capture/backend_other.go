//go:build !linux

package capture

import "fmt"

// openBackend has no non-cgo implementation on this platform yet. The
// reference Darwin and Windows camera backends (AVFoundation /
// CVPixelBuffer, Media Foundation IMFSourceReader) require cgo bridges
// this module does not carry; see DESIGN.md for the decision to stub
// rather than guess at an unverified cgo surface.
func openBackend(device string, seed ModeSeed) (backend, error) {
	return nil, fmt.Errorf("capture: openBackend: %w: no capture backend built for this platform", ErrNotSupported)
}
