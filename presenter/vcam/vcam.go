// Package vcam implements the virtual-camera presenter: a platform-
// specific sink with a common write_frame(frame) contract
// (SPEC_FULL.md §4.6.2, §6.4).
package vcam

import (
	"errors"

	"github.com/gogpu/camfx/frame"
)

// Sink is the common contract every platform's virtual-camera
// implementation satisfies (SPEC_FULL.md §4.6.2).
type Sink interface {
	WriteFrame(f *frame.Frame) error
	Close() error
}

// ErrAlreadyPublishing is returned when a publisher tries to start on a
// sink another process already owns — the shared-memory variant refuses
// to start if its named region already exists, and the system-extension
// variant guards with a process-wide lock (SPEC_FULL.md §4.6.2).
var ErrAlreadyPublishing = errors.New("vcam: sink already has a publisher")

// ErrWouldBlock is returned by the kernel-loopback variant when a write
// would block; the caller drops the frame with a warning
// (SPEC_FULL.md §4.6.2).
var ErrWouldBlock = errors.New("vcam: write would block")

// Config configures a virtual-camera sink.
type Config struct {
	Device        string // kernel-loopback device node, default /dev/video10
	Width, Height int
	FPS           int
}
