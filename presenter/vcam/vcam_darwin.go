//go:build darwin

package vcam

import (
	"fmt"

	"github.com/gogpu/camfx/frame"
)

// DAL/CMIO-backed virtual camera requires a cgo bridge against
// CoreMediaIO's system-extension APIs: locate the extension by its
// well-known UID, select output stream index 1, obtain its
// sample-buffer queue, allocate a UYVY CVPixelBufferPool, and for each
// frame wrap a pool buffer in a CMSampleBuffer carrying a presentation
// timestamp (monotonic nanoseconds since boot, timescale 1e9), guarded
// by a process-wide lock so only one publisher holds the extension at a
// time (SPEC_FULL.md §4.6.2, §6.4).
//
// This module carries no cgo bridge (kept out of a pure-Go tree, same
// rationale as camera enumeration on this platform); Open always
// reports ErrNotSupported.

// SystemExtensionSink is the macOS virtual-camera sink. It is never
// constructed in this build; it documents the call sequence a cgo
// bridge would make.
type SystemExtensionSink struct{}

func Open(cfg Config) (Sink, error) {
	return nil, fmt.Errorf("vcam: Open: %w: macOS system-extension virtual camera requires a cgo bridge not carried by this build", errNotSupportedDarwin)
}

func (s *SystemExtensionSink) WriteFrame(f *frame.Frame) error {
	return errNotSupportedDarwin
}

func (s *SystemExtensionSink) Close() error {
	return errNotSupportedDarwin
}

var errNotSupportedDarwin = fmt.Errorf("vcam: not supported without cgo")
