// Package presenter hands the shader pipeline's output texture to a
// window surface or a virtual-camera sink.
package presenter

import "github.com/gogpu/camfx/frame"

// Presenter is the common contract both output modes satisfy
// (SPEC_FULL.md §4.6). The window presenter consumes the pipeline's GPU
// texture directly; virtual-camera presenters consume a CPU-readback
// RGBA frame.
type Presenter interface {
	// WriteFrame delivers one frame to the sink. For GPU-shared
	// presenters this is driven by the pipeline's render pass rather
	// than called directly; virtual-camera sinks implement it over the
	// readback path described in SPEC_FULL.md §4.5.3.
	WriteFrame(f *frame.Frame) error

	// Close tears down the sink.
	Close() error
}
