//go:build windows

package vcam

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/gogpu/camfx/frame"
)

// sharedMemoryName is the fixed well-known identifier every publisher
// and consumer of the Windows virtual camera agrees on
// (SPEC_FULL.md §6.4).
const sharedMemoryName = "Local\\camfx-virtual-camera-v1"

const (
	stateInvalid  = 0
	stateStarting = 1
	stateReady    = 2
	stateStopping = 3

	headerSize     = 64 // write/read index, state, slot offsets, width, height, interval; no type tag is written
	frameHeaderLen = 32 // 32-byte aligned timestamp header preceding each frame slot
)

func align32(n int) int { return (n + 31) &^ 31 }

// SharedMemorySink publishes NV12 frames into a named shared-memory
// region laid out as {header, slot0, slot1, slot2}, each slot preceded
// by a 32-byte timestamp header, with atomic write/read indices in the
// header (SPEC_FULL.md §4.6.2, §6.4).
type SharedMemorySink struct {
	handle windows.Handle
	addr   uintptr
	size   int

	width, height int
	slotSize      int
	writeIndex    uint32
}

// Open creates the named shared-memory region. It refuses to start if
// the region already exists, since that means another publisher owns
// it (SPEC_FULL.md §4.6.2).
func Open(cfg Config) (Sink, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("vcam: Open: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}

	nv12Size := cfg.Width*cfg.Height + (cfg.Width*cfg.Height)/2
	slotSize := align32(frameHeaderLen + nv12Size)
	totalSize := align32(headerSize) + slotSize*3

	namePtr, err := windows.UTF16PtrFromString(sharedMemoryName)
	if err != nil {
		return nil, fmt.Errorf("vcam: Open: encode name: %w", err)
	}

	handle, err := windows.CreateFileMapping(
		windows.InvalidHandle, nil, windows.PAGE_READWRITE,
		0, uint32(totalSize), namePtr)
	if err != nil {
		return nil, fmt.Errorf("vcam: Open: CreateFileMapping: %w", err)
	}
	if windows.GetLastError() == windows.ERROR_ALREADY_EXISTS {
		windows.CloseHandle(handle)
		return nil, ErrAlreadyPublishing
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE, 0, 0, uintptr(totalSize))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("vcam: Open: MapViewOfFile: %w", err)
	}

	s := &SharedMemorySink{
		handle:   handle,
		addr:     addr,
		size:     totalSize,
		width:    cfg.Width,
		height:   cfg.Height,
		slotSize: slotSize,
	}

	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	s.writeHeader(uint32(10_000_000 / fps))
	return s, nil
}

func (s *SharedMemorySink) headerPtr() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(s.addr)), headerSize)
}

// writeHeader lays out state/width/height/interval/slot offsets; the
// atomic write/read indices occupy the first 8 bytes.
func (s *SharedMemorySink) writeHeader(intervalHns uint32) {
	h := s.headerPtr()
	binary.LittleEndian.PutUint32(h[8:], stateStarting)
	binary.LittleEndian.PutUint32(h[12:], uint32(s.width))
	binary.LittleEndian.PutUint32(h[16:], uint32(s.height))
	binary.LittleEndian.PutUint32(h[20:], intervalHns)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(h[24+4*i:], uint32(align32(headerSize)+i*s.slotSize))
	}
	binary.LittleEndian.PutUint32(h[8:], stateReady)
}

func (s *SharedMemorySink) stateAddr() *uint32 {
	return (*uint32)(unsafe.Pointer(s.addr + 8))
}
func (s *SharedMemorySink) writeIndexAddr() *uint32 {
	return (*uint32)(unsafe.Pointer(s.addr))
}
func (s *SharedMemorySink) readIndexAddr() *uint32 {
	return (*uint32)(unsafe.Pointer(s.addr + 4))
}

// WriteFrame converts the frame to NV12, atomically advances the write
// index, copies the frame and a timestamp into slot = write_index mod
// 3, then publishes read_index = write_index (SPEC_FULL.md §4.6.2).
func (s *SharedMemorySink) WriteFrame(f *frame.Frame) error {
	nv12, err := f.ToNV12()
	if err != nil {
		return fmt.Errorf("vcam: WriteFrame: convert to NV12: %w", err)
	}

	next := atomic.AddUint32(&s.writeIndex, 1)
	slot := next % 3
	slotOffset := align32(headerSize) + int(slot)*s.slotSize

	slotBytes := unsafe.Slice((*byte)(unsafe.Pointer(s.addr+uintptr(slotOffset))), s.slotSize)
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(nv12.Timestamp))
	copy(slotBytes[:8], tsBuf[:])
	copy(slotBytes[frameHeaderLen:], nv12.Bytes)

	atomic.StoreUint32(s.writeIndexAddr(), next)
	atomic.StoreUint32(s.readIndexAddr(), next)
	atomic.StoreUint32(s.stateAddr(), stateReady)
	return nil
}

// Close marks the region as stopping and unmaps/closes it.
func (s *SharedMemorySink) Close() error {
	atomic.StoreUint32(s.stateAddr(), stateStopping)
	_ = windows.UnmapViewOfFile(s.addr)
	return windows.CloseHandle(s.handle)
}
