//go:build linux

package vcam

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/camfx/frame"
)

// LoopbackSink writes YUYV frames to a v4l2loopback device node via raw
// write(2) syscalls (SPEC_FULL.md §4.6.2, §6.4).
type LoopbackSink struct {
	fd            int
	width, height int
}

// Open opens the configured device node (default /dev/video10)
// non-blocking and sets its output format to YUYV at the configured
// dimensions.
func Open(cfg Config) (Sink, error) {
	device := cfg.Device
	if device == "" {
		device = "/dev/video10"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("vcam: Open: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("vcam: Open: open %s: %w", device, err)
	}

	if err := setLoopbackFormat(fd, cfg.Width, cfg.Height); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("vcam: Open: set format: %w", err)
	}

	return &LoopbackSink{fd: fd, width: cfg.Width, height: cfg.Height}, nil
}

// WriteFrame converts the frame to YUYV and writes it to the device
// node. A would-block error drops the frame with a warning, per
// SPEC_FULL.md §4.6.2; the error is still returned so the caller can log
// it.
func (s *LoopbackSink) WriteFrame(f *frame.Frame) error {
	yuyv, err := f.ToYUYV()
	if err != nil {
		return fmt.Errorf("vcam: WriteFrame: convert to YUYV: %w", err)
	}

	_, err = unix.Write(s.fd, yuyv.Bytes)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return ErrWouldBlock
	}
	if err != nil {
		return fmt.Errorf("vcam: WriteFrame: write: %w", err)
	}
	return nil
}

// Close releases the device node.
func (s *LoopbackSink) Close() error {
	return unix.Close(s.fd)
}

// v4l2PixFormat and v4l2Format mirror the kernel's struct v4l2_pix_format
// / struct v4l2_format layout, same as the capture backend's ioctl
// structs, just targeting V4L2_BUF_TYPE_VIDEO_OUTPUT instead of CAPTURE.
type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	Pixelformat  uint32
	Field        uint32
	Bytesperline uint32
	Sizeimage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

type v4l2Format struct {
	Type uint32
	_    [4]byte
	fmt  [200]byte
}

const (
	v4l2BufTypeVideoOutput = 2
	v4l2PixFmtYUYV         = 0x56595559
	v4l2FieldNone          = 1
	vidiocSFmt             = 0xc0d05605 // VIDIOC_S_FMT
)

// setLoopbackFormat issues VIDIOC_S_FMT for V4L2_PIX_FMT_YUYV with
// bytes-per-line = width*2 (SPEC_FULL.md §6.4). v4l2loopback accepts
// whatever output format its writer declares via this ioctl.
func setLoopbackFormat(fd, width, height int) error {
	format := v4l2Format{Type: v4l2BufTypeVideoOutput}
	pix := (*v4l2PixFormat)(unsafe.Pointer(&format.fmt[0]))
	pix.Width = uint32(width)
	pix.Height = uint32(height)
	pix.Pixelformat = v4l2PixFmtYUYV
	pix.Field = v4l2FieldNone
	pix.Bytesperline = uint32(width * 2)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(vidiocSFmt), uintptr(unsafe.Pointer(&format)))
	if errno != 0 {
		return errno
	}
	return nil
}
