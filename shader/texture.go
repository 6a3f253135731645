//go:build !nogpu

package shader

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camfx/frame"
)

// Texture-related errors.
var (
	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("wgpu: texture has been released")

	// ErrTextureSizeMismatch is returned when a frame's size doesn't match the texture.
	ErrTextureSizeMismatch = errors.New("wgpu: pixmap size does not match texture")

	// ErrNilPixmap is returned when a frame argument is nil.
	ErrNilPixmap = errors.New("wgpu: pixmap is nil")

	// ErrNilHALDevice is returned when a HAL device handle is required but nil.
	ErrNilHALDevice = errors.New("wgpu: hal device is nil")
)

// copyPitchAlignment is the row-pitch alignment wgpu backends require for
// buffer<->texture copies (matches the teacher's readback path).
const copyPitchAlignment = 256

// gpuWaitTimeout bounds how long a single stage draw (drawStage) or
// texture readback (DownloadFrame) waits on its fence before giving up.
const gpuWaitTimeout = 5 * time.Second

// TextureFormat represents the pixel format of a GPU texture.
type TextureFormat uint8

const (
	// TextureFormatRGBA8 is the standard RGBA format with 8 bits per channel.
	TextureFormatRGBA8 TextureFormat = iota

	// TextureFormatBGRA8 is BGRA format, often used for surface presentation.
	TextureFormatBGRA8

	// TextureFormatR8 is single-channel 8-bit format, used for masks.
	TextureFormatR8
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "RGBA8"
	case TextureFormatBGRA8:
		return "BGRA8"
	case TextureFormatR8:
		return "R8"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8, TextureFormatBGRA8:
		return 4
	case TextureFormatR8:
		return 1
	default:
		return 4
	}
}

// ToWGPUFormat converts to the HAL's texture format enum.
func (f TextureFormat) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case TextureFormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case TextureFormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case TextureFormatR8:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// GPUTexture represents a GPU texture resource: a HAL texture plus its
// default 2D view, with upload/download helpers for the camera-frame and
// render-target textures the shader pipeline moves every tick.
//
// GPUTexture is safe for concurrent read access. Write operations
// (UploadFrame, DownloadFrame, Close) should be synchronized externally.
type GPUTexture struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue
	tex    hal.Texture
	view   hal.TextureView

	// Texture properties
	width  int
	height int
	format TextureFormat
	usage  gputypes.TextureUsage

	// Memory tracking
	sizeBytes uint64
	manager   *MemoryManager // optional, for memory tracking

	// State
	released atomic.Bool
	label    string
}

// TextureConfig holds configuration for creating a new texture.
type TextureConfig struct {
	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the pixel format.
	Format TextureFormat

	// Label is an optional debug label.
	Label string

	// Usage flags (default: CopySrc | CopyDst | TextureBinding)
	Usage gputypes.TextureUsage
}

// DefaultTextureUsage is the default usage for textures created without specific flags.
const DefaultTextureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding

// CreateTexture creates a new GPU texture (and its default 2D view) with
// the given configuration. The texture is uninitialized and should be
// filled with UploadFrame.
func CreateTexture(dev *Device, config TextureConfig) (*GPUTexture, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if dev == nil || !dev.IsOpen() {
		return nil, ErrNotInitialized
	}

	device, queue := dev.Raw()

	usage := config.Usage
	if usage == 0 {
		usage = DefaultTextureUsage
	}
	format := config.Format.ToWGPUFormat()

	//nolint:gosec // G115: dimensions are validated positive above
	size := hal.Extent3D{Width: uint32(config.Width), Height: uint32(config.Height), DepthOrArrayLayers: 1}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         config.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: CreateTexture: %w", err)
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         config.Label + "-view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("shader: CreateTexture: create view: %w", err)
	}

	//nolint:gosec // G115: dimensions are validated positive above
	sizeBytes := uint64(config.Width * config.Height * config.Format.BytesPerPixel())

	return &GPUTexture{
		device:    device,
		queue:     queue,
		tex:       tex,
		view:      view,
		width:     config.Width,
		height:    config.Height,
		format:    config.Format,
		usage:     usage,
		sizeBytes: sizeBytes,
		label:     config.Label,
	}, nil
}

// CreateTextureFromFrame creates a GPU texture from a pixmap, uploading
// the pixel data immediately.
func CreateTextureFromFrame(dev *Device, f *frame.Frame, label string) (*GPUTexture, error) {
	if f == nil {
		return nil, ErrNilPixmap
	}

	tex, err := CreateTexture(dev, TextureConfig{
		Width:  f.Width,
		Height: f.Height,
		Format: TextureFormatRGBA8,
		Label:  label,
	})
	if err != nil {
		return nil, err
	}

	if err := tex.UploadFrame(f); err != nil {
		tex.Close()
		return nil, err
	}

	return tex, nil
}

// Width returns the texture width in pixels.
func (t *GPUTexture) Width() int {
	return t.width
}

// Height returns the texture height in pixels.
func (t *GPUTexture) Height() int {
	return t.height
}

// Format returns the texture format.
func (t *GPUTexture) Format() TextureFormat {
	return t.format
}

// SizeBytes returns the texture size in bytes.
func (t *GPUTexture) SizeBytes() uint64 {
	return t.sizeBytes
}

// Label returns the debug label.
func (t *GPUTexture) Label() string {
	return t.label
}

// IsReleased returns true if the texture has been released.
func (t *GPUTexture) IsReleased() bool {
	return t.released.Load()
}

// Raw returns the underlying HAL texture. Returns nil for a released
// texture.
func (t *GPUTexture) Raw() hal.Texture {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tex
}

// View returns the texture's default 2D view, for binding as a shader
// input or as a render-pass color attachment. Returns nil for a released
// texture.
func (t *GPUTexture) View() hal.TextureView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.view
}

// UploadFrame uploads pixel data from a Frame to the GPU texture via
// queue.WriteTexture. The frame's dimensions must match the texture's.
func (t *GPUTexture) UploadFrame(f *frame.Frame) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	if f == nil {
		return ErrNilPixmap
	}
	if f.Width != t.width || f.Height != t.height {
		return fmt.Errorf("%w: expected %dx%d, got %dx%d",
			ErrTextureSizeMismatch, t.width, t.height, f.Width, f.Height)
	}

	//nolint:gosec // G115: dimensions are validated positive at creation
	bytesPerRow := uint32(t.width * t.format.BytesPerPixel())
	//nolint:gosec // G115: dimensions are validated positive at creation
	extent := &hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1}

	t.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		f.Bytes,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: uint32(t.height)}, //nolint:gosec // G115
		extent,
	)

	return nil
}

// UploadRegion uploads pixel data to a region of the texture. This is
// useful for texture atlas updates.
func (t *GPUTexture) UploadRegion(x, y int, f *frame.Frame) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	if f == nil {
		return ErrNilPixmap
	}
	if x < 0 || y < 0 || x+f.Width > t.width || y+f.Height > t.height {
		return fmt.Errorf("%w: region (%d,%d)+(%dx%d) exceeds texture bounds (%dx%d)",
			ErrInvalidDimensions, x, y, f.Width, f.Height, t.width, t.height)
	}

	//nolint:gosec // G115: dimensions are validated positive at creation
	bytesPerRow := uint32(f.Width * t.format.BytesPerPixel())
	copyTex := &hal.ImageCopyTexture{
		Texture:  t.tex,
		MipLevel: 0,
		//nolint:gosec // G115: bounds checked above
		Origin: gputypes.Origin3D{X: uint32(x), Y: uint32(y), Z: 0},
	}
	//nolint:gosec // G115: bounds checked above
	extent := &hal.Extent3D{Width: uint32(f.Width), Height: uint32(f.Height), DepthOrArrayLayers: 1}

	t.queue.WriteTexture(copyTex, f.Bytes,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: uint32(f.Height)}, //nolint:gosec // G115
		extent,
	)

	return nil
}

// DownloadFrame reads the texture back into a new Frame. This requires
// the texture to have been created with CopySrc usage.
//
// The readback sequence (encode a copy into a staging buffer, submit,
// wait on a fence, then read the buffer) mirrors the teacher's
// GPURenderSession.encodeSubmitReadback.
func (t *GPUTexture) DownloadFrame() (*frame.Frame, error) {
	t.mu.RLock()
	released := t.released.Load()
	device, tex := t.device, t.tex
	width, height, format := t.width, t.height, t.format
	t.mu.RUnlock()

	if released {
		return nil, ErrTextureReleased
	}
	if device == nil {
		return nil, ErrNilHALDevice
	}

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: t.label + "-readback"})
	if err != nil {
		return nil, fmt.Errorf("shader: DownloadFrame: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(t.label + "-readback"); err != nil {
		return nil, fmt.Errorf("shader: DownloadFrame: begin encoding: %w", err)
	}

	bytesPerPixel := uint32(format.BytesPerPixel()) //nolint:gosec // G115
	//nolint:gosec // G115: dimensions are validated positive at creation
	w, h := uint32(width), uint32(height)
	bytesPerRow := w * bytesPerPixel
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := CreateStagingBuffer(device, stagingSize, false, t.label+"-staging")
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("shader: DownloadFrame: create staging buffer: %w", err)
	}
	defer staging.Destroy()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	encoder.CopyTextureToBuffer(tex, staging.Raw(), []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("shader: DownloadFrame: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("shader: DownloadFrame: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := t.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("shader: DownloadFrame: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, gpuWaitTimeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("shader: DownloadFrame: wait for GPU: ok=%v err=%w", ok, err)
	}

	readback := make([]byte, stagingSize)
	if err := t.queue.ReadBuffer(staging.Raw(), 0, readback); err != nil {
		return nil, fmt.Errorf("shader: DownloadFrame: read buffer: %w", err)
	}

	out := frame.New(toFrameFormat(format), width, height)
	if alignedBytesPerRow == bytesPerRow {
		copy(out.Bytes, readback)
	} else {
		for row := uint32(0); row < h; row++ {
			srcOff := row * alignedBytesPerRow
			dstOff := row * bytesPerRow
			copy(out.Bytes[dstOff:dstOff+bytesPerRow], readback[srcOff:srcOff+bytesPerRow])
		}
	}

	return out, nil
}

// toFrameFormat maps a shader TextureFormat to the frame package's pixel
// format for DownloadFrame's output.
func toFrameFormat(f TextureFormat) frame.Format {
	if f == TextureFormatR8 {
		return frame.RGBA8 // mask textures are never downloaded as R8 today
	}
	return frame.RGBA8
}

// SetMemoryManager sets the memory manager for tracking.
// This is called internally when allocating through MemoryManager.
func (t *GPUTexture) SetMemoryManager(m *MemoryManager) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.manager = m
}

// Close releases the GPU texture resources.
// The texture should not be used after Close is called.
func (t *GPUTexture) Close() {
	if t.released.Swap(true) {
		return // Already released
	}

	t.mu.Lock()
	manager := t.manager
	device := t.device
	view := t.view
	tex := t.tex
	t.manager = nil
	t.view = nil
	t.tex = nil
	t.mu.Unlock()

	// Notify memory manager if present
	if manager != nil {
		manager.unregisterTexture(t)
	}

	if device != nil {
		if view != nil {
			device.DestroyTextureView(view)
		}
		if tex != nil {
			device.DestroyTexture(tex)
		}
	}
}

// String returns a string representation of the texture.
func (t *GPUTexture) String() string {
	status := "active"
	if t.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("GPUTexture[%s %dx%d %s %d bytes %s]",
		t.label, t.width, t.height, t.format, t.sizeBytes, status)
}
