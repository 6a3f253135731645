//go:build linux

package capture

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/gogpu/camfx/frame"
)

// V4L2 capture backend, grounded on svanichkin-gocam's capture_linux.go:
// same ioctl struct layouts, mmap buffer handling, and fallback-format
// negotiation, generalized to camfx's ModeSeed/backend contract instead of
// one hardcoded CIF stream.

const (
	v4l2BufTypeVideoCapture = 1
	v4l2FieldAny            = 0
	v4l2MemoryMMap          = 1
)

const (
	v4l2PixFmtRGB24 = 0x33424752 // 'RGB3'
	v4l2PixFmtYUYV  = 0x56595559 // 'YUYV'
	v4l2PixFmtUYVY  = 0x59565955 // 'UYVY'
	v4l2PixFmtNV12  = 0x3231564E // 'NV12'
)

const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000
)

type v4l2Capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

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

type v4l2RequestBuffers struct {
	Count    uint32
	Type     uint32
	Memory   uint32
	Reserved [2]uint32
}

type v4l2Timecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	Userbits [4]uint8
}

type v4l2Buffer struct {
	Index     uint32
	Type      uint32
	Bytesused uint32
	Flags     uint32
	Field     uint32
	Timestamp syscall.Timeval
	Timecode  v4l2Timecode
	Sequence  uint32
	Memory    uint32
	Offset    uint32
	_         uint32
	Length    uint32
	Reserved2 uint32
	Reserved  uint32
}

type v4l2Frmsizeenum struct {
	Index       uint32
	PixelFormat uint32
	Type        uint32
	// discrete frame size; union in the C struct, only the fields we use.
	Width, Height uint32
	_             [24]byte
}

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func iow(typ, nr, size uintptr) uintptr  { return ioc(iocWrite, typ, nr, size) }
func ior(typ, nr, size uintptr) uintptr  { return ioc(iocRead, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

var (
	vidiocQuerycap    = ior(uintptr('V'), 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocSFmt        = iowr(uintptr('V'), 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqbufs     = iowr(uintptr('V'), 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQuerybuf    = iowr(uintptr('V'), 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQBuf        = iowr(uintptr('V'), 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDQBuf       = iowr(uintptr('V'), 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamOn    = iow(uintptr('V'), 18, unsafe.Sizeof(uint32(0)))
	vidiocStreamOff   = iow(uintptr('V'), 19, unsafe.Sizeof(uint32(0)))
	vidiocEnumFrmSize = iowr(uintptr('V'), 74, unsafe.Sizeof(v4l2Frmsizeenum{}))
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

type mappedBuffer struct {
	data []byte
}

// v4l2Backend drives one /dev/videoN device at a fixed mode, mmap'ing its
// capture buffers and exposing captureOne/close/supportedModes/switchMode.
type v4l2Backend struct {
	path string

	fd      int
	width   int
	height  int
	stride  int
	pixFmt  uint32
	format  frame.Format
	buffers []mappedBuffer

	streaming bool
}

func devicePath(device string) string {
	if device == "" {
		return "/dev/video0"
	}
	if device[0] == '/' {
		return device
	}
	return "/dev/video" + device
}

func fourccFor(f frame.Format) (uint32, error) {
	switch f {
	case frame.RGB8:
		return v4l2PixFmtRGB24, nil
	case frame.YUYV:
		return v4l2PixFmtYUYV, nil
	case frame.UYVY:
		return v4l2PixFmtUYVY, nil
	case frame.NV12:
		return v4l2PixFmtNV12, nil
	default:
		return 0, fmt.Errorf("capture: fourccFor: %w: format %s has no native V4L2 fourcc", ErrNotSupported, f)
	}
}

func formatFor(fourcc uint32) (frame.Format, bool) {
	switch fourcc {
	case v4l2PixFmtRGB24:
		return frame.RGB8, true
	case v4l2PixFmtYUYV:
		return frame.YUYV, true
	case v4l2PixFmtUYVY:
		return frame.UYVY, true
	case v4l2PixFmtNV12:
		return frame.NV12, true
	default:
		return 0, false
	}
}

// openBackend opens the named V4L2 device, negotiates the seed's pixel
// format (falling back through RGB24/YUYV/NV12/UYVY if the driver
// substitutes one), allocates mmap'd capture buffers, and starts
// streaming (SPEC_FULL.md §4.2).
func openBackend(device string, seed ModeSeed) (backend, error) {
	path := devicePath(device)
	fd, err := syscall.Open(path, syscall.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("capture: openBackend: %w: open %s: %v", ErrDeviceOpen, path, err)
	}

	b := &v4l2Backend{path: path, fd: fd}

	var caps v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&caps)); err != nil {
		b.closeFD()
		return nil, fmt.Errorf("capture: openBackend: VIDIOC_QUERYCAP: %w", err)
	}
	capsToCheck := caps.Capabilities
	if capsToCheck&v4l2CapDeviceCaps != 0 {
		capsToCheck = caps.DeviceCaps
	}
	if capsToCheck&v4l2CapVideoCapture == 0 || capsToCheck&v4l2CapStreaming == 0 {
		b.closeFD()
		return nil, fmt.Errorf("capture: openBackend: %w: %s lacks capture/streaming caps", ErrNotSupported, path)
	}

	fourcc, err := fourccFor(seed.Format)
	if err != nil {
		b.closeFD()
		return nil, err
	}

	if err := b.setFormat(seed.Width, seed.Height, fourcc); err != nil {
		b.closeFD()
		return nil, fmt.Errorf("capture: openBackend: set format: %w", err)
	}

	if err := b.allocBuffers(); err != nil {
		b.closeFD()
		return nil, err
	}

	if err := b.streamOn(); err != nil {
		b.teardownBuffers()
		b.closeFD()
		return nil, err
	}

	return b, nil
}

// setFormat issues VIDIOC_S_FMT, recording whatever width/height/fourcc the
// driver actually settled on.
func (b *v4l2Backend) setFormat(width, height int, fourcc uint32) error {
	format := v4l2Format{Type: v4l2BufTypeVideoCapture}
	pix := (*v4l2PixFormat)(unsafe.Pointer(&format.fmt[0]))
	pix.Width = uint32(width)
	pix.Height = uint32(height)
	pix.Pixelformat = fourcc
	pix.Field = v4l2FieldAny

	if err := ioctl(b.fd, vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}

	gotFormat, ok := formatFor(pix.Pixelformat)
	if !ok {
		return fmt.Errorf("capture: setFormat: %w: driver substituted unsupported fourcc 0x%x", ErrNotSupported, pix.Pixelformat)
	}

	b.width = int(pix.Width)
	b.height = int(pix.Height)
	b.pixFmt = pix.Pixelformat
	b.format = gotFormat
	b.stride = int(pix.Bytesperline)
	if b.stride == 0 {
		b.stride = frame.ByteSize(gotFormat, b.width, 1)
	}
	return nil
}

func (b *v4l2Backend) allocBuffers() error {
	req := v4l2RequestBuffers{Count: 4, Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMap}
	if err := ioctl(b.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("capture: allocBuffers: VIDIOC_REQBUFS: %w", err)
	}
	if req.Count < 2 {
		return fmt.Errorf("capture: allocBuffers: insufficient buffers: %d", req.Count)
	}

	b.buffers = make([]mappedBuffer, req.Count)
	for i := uint32(0); i < req.Count; i++ {
		buf := v4l2Buffer{Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMap, Index: i}
		if err := ioctl(b.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			return fmt.Errorf("capture: allocBuffers: VIDIOC_QUERYBUF %d: %w", i, err)
		}
		data, err := syscall.Mmap(b.fd, int64(buf.Offset), int(buf.Length), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("capture: allocBuffers: mmap %d: %w", i, err)
		}
		b.buffers[i] = mappedBuffer{data: data}
		if err := ioctl(b.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
			return fmt.Errorf("capture: allocBuffers: VIDIOC_QBUF %d: %w", i, err)
		}
	}
	return nil
}

func (b *v4l2Backend) streamOn() error {
	bufType := uint32(v4l2BufTypeVideoCapture)
	if err := ioctl(b.fd, vidiocStreamOn, unsafe.Pointer(&bufType)); err != nil {
		return fmt.Errorf("capture: streamOn: VIDIOC_STREAMON: %w", err)
	}
	b.streaming = true
	return nil
}

func (b *v4l2Backend) teardownBuffers() {
	for _, mb := range b.buffers {
		if mb.data != nil {
			_ = syscall.Munmap(mb.data)
		}
	}
	b.buffers = nil
}

func (b *v4l2Backend) closeFD() {
	_ = syscall.Close(b.fd)
}

// captureOne blocks (via a blocking-mode fd) for VIDIOC_DQBUF, copies the
// dequeued buffer into a frame.Frame, requeues it, and returns the frame
// decoded to RGBA.
func (b *v4l2Backend) captureOne() (*frame.Frame, error) {
	buf := v4l2Buffer{Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMap}
	if err := ioctl(b.fd, vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		return nil, fmt.Errorf("capture: captureOne: VIDIOC_DQBUF: %w", err)
	}

	var out *frame.Frame
	if int(buf.Index) < len(b.buffers) {
		src := b.buffers[buf.Index].data
		sz := int(buf.Bytesused)
		if sz <= 0 || sz > len(src) {
			sz = len(src)
		}
		out = copyFrame(src[:sz], b.format, b.width, b.height, b.stride)
	}

	if err := ioctl(b.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
		return nil, fmt.Errorf("capture: captureOne: VIDIOC_QBUF: %w", err)
	}

	if out == nil {
		return nil, fmt.Errorf("capture: captureOne: buffer index %d out of range", buf.Index)
	}
	return out.ToRGBA()
}

// copyFrame repacks a (possibly strided) V4L2 buffer into a tightly packed
// frame.Frame, dropping any row padding beyond the format's natural stride.
func copyFrame(src []byte, format frame.Format, width, height, stride int) *frame.Frame {
	f := frame.New(format, width, height)
	rowBytes := frame.ByteSize(format, width, 1)
	if format == frame.NV12 {
		// Planar: Y plane uses `stride`, UV plane typically shares it.
		ySize := stride * height
		if ySize > len(src) {
			return nil
		}
		dstYSize := width * height
		copyPlane(f.Bytes[:dstYSize], src[:ySize], width, height, stride)
		uvHeight := height / 2
		uvSrc := src[ySize:]
		uvStride := stride
		uvRowBytes := width
		dstUV := f.Bytes[dstYSize:]
		copyPlane(dstUV[:uvHeight*uvRowBytes], uvSrc, uvRowBytes, uvHeight, uvStride)
		return f
	}

	if stride <= rowBytes || height == 0 {
		n := rowBytes * height
		if n > len(src) {
			n = len(src)
		}
		copy(f.Bytes, src[:n])
		return f
	}
	copyPlane(f.Bytes, src, rowBytes, height, stride)
	return f
}

func copyPlane(dst, src []byte, rowBytes, height, stride int) {
	for y := 0; y < height; y++ {
		srcStart := y * stride
		srcEnd := srcStart + rowBytes
		dstStart := y * rowBytes
		dstEnd := dstStart + rowBytes
		if srcEnd > len(src) || dstEnd > len(dst) {
			return
		}
		copy(dst[dstStart:dstEnd], src[srcStart:srcEnd])
	}
}

func (b *v4l2Backend) close() error {
	if b.streaming {
		bufType := uint32(v4l2BufTypeVideoCapture)
		_ = ioctl(b.fd, vidiocStreamOff, unsafe.Pointer(&bufType))
	}
	b.teardownBuffers()
	b.closeFD()
	return nil
}

// supportedModes enumerates discrete frame sizes the driver reports for
// the currently negotiated pixel format (SPEC_FULL.md §4.2 native-mode
// upgrade).
func (b *v4l2Backend) supportedModes() ([]ModeSeed, error) {
	var modes []ModeSeed
	for i := uint32(0); ; i++ {
		fs := v4l2Frmsizeenum{Index: i, PixelFormat: b.pixFmt}
		if err := ioctl(b.fd, vidiocEnumFrmSize, unsafe.Pointer(&fs)); err != nil {
			break
		}
		if fs.Width == 0 || fs.Height == 0 {
			continue
		}
		modes = append(modes, ModeSeed{
			Width:  int(fs.Width),
			Height: int(fs.Height),
			Format: b.format,
			FPS:    30,
		})
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("capture: supportedModes: %w: no discrete frame sizes reported", ErrNotSupported)
	}
	return modes, nil
}

// switchMode stops streaming, tears down buffers, renegotiates the format
// at the new size, and restarts streaming. On failure the device stays
// open but is not streaming; the caller falls back to the originally
// opened seed.
func (b *v4l2Backend) switchMode(seed ModeSeed) error {
	if b.streaming {
		bufType := uint32(v4l2BufTypeVideoCapture)
		_ = ioctl(b.fd, vidiocStreamOff, unsafe.Pointer(&bufType))
		b.streaming = false
	}
	b.teardownBuffers()

	fourcc, err := fourccFor(seed.Format)
	if err != nil {
		return err
	}
	if err := b.setFormat(seed.Width, seed.Height, fourcc); err != nil {
		return fmt.Errorf("capture: switchMode: %w", err)
	}
	if err := b.allocBuffers(); err != nil {
		return fmt.Errorf("capture: switchMode: %w", err)
	}
	return b.streamOn()
}
