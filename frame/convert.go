package frame

import "fmt"

// clip8 clamps v into [0, 255] and truncates to uint8.
func clip8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// rgbToYUV709 converts one full-range RGB triple to BT.709 limited-range
// Y'CbCr, using the fixed-point coefficients common in the BT.709 spec.
func rgbToYUV709(r, g, b byte) (y, u, v byte) {
	ri, gi, bi := int32(r), int32(g), int32(b)
	y = clip8(((47*ri + 157*gi + 16*bi + 128) >> 8) + 16)
	u = clip8(((-26*ri - 87*gi + 112*bi + 128) >> 8) + 128)
	v = clip8(((112*ri - 102*gi - 10*bi + 128) >> 8) + 128)
	return
}

// yuvToRGB709 converts one BT.709 limited-range Y'CbCr triple back to
// full-range RGB.
func yuvToRGB709(y, u, v byte) (r, g, b byte) {
	c := int32(y) - 16
	d := int32(u) - 128
	e := int32(v) - 128
	r = clip8((298*c + 459*e + 128) >> 8)
	g = clip8((298*c - 55*d - 136*e + 128) >> 8)
	b = clip8((298*c + 541*d + 128) >> 8)
	return
}

// ToRGBA returns a new Frame in RGBA8 format with the same dimensions and
// timestamp. If f is already RGBA8, a copy is returned.
func (f *Frame) ToRGBA() (*Frame, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("frame: ToRGBA: %w", err)
	}

	out := New(RGBA8, f.Width, f.Height)
	out.Timestamp = f.Timestamp

	switch f.Format {
	case RGBA8:
		copy(out.Bytes, f.Bytes)

	case RGB8:
		src := f.Bytes
		dst := out.Bytes
		for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
			dst[j], dst[j+1], dst[j+2], dst[j+3] = src[i], src[i+1], src[i+2], 255
		}

	case YUYV:
		convertPacked422ToRGBA(f.Bytes, out.Bytes, f.Width, f.Height, true)

	case UYVY:
		convertPacked422ToRGBA(f.Bytes, out.Bytes, f.Width, f.Height, false)

	case NV12:
		convertNV12ToRGBA(f.Bytes, out.Bytes, f.Width, f.Height)

	default:
		return nil, fmt.Errorf("frame: ToRGBA: unsupported source format %s", f.Format)
	}

	return out, nil
}

// convertPacked422ToRGBA decodes a YUYV (yFirst=true) or UYVY (yFirst=false)
// buffer, two pixels at a time, into an RGBA8 destination.
func convertPacked422ToRGBA(src, dst []byte, width, height int, yFirst bool) {
	rowBytes := width * 2
	for row := 0; row < height; row++ {
		srow := src[row*rowBytes : (row+1)*rowBytes]
		drow := dst[row*width*4 : (row+1)*width*4]
		for i, x := 0, 0; i+4 <= len(srow); i, x = i+4, x+2 {
			var y0, u, y1, v byte
			if yFirst {
				y0, u, y1, v = srow[i], srow[i+1], srow[i+2], srow[i+3]
			} else {
				u, y0, v, y1 = srow[i], srow[i+1], srow[i+2], srow[i+3]
			}
			r0, g0, b0 := yuvToRGB709(y0, u, v)
			r1, g1, b1 := yuvToRGB709(y1, u, v)
			o := x * 4
			drow[o], drow[o+1], drow[o+2], drow[o+3] = r0, g0, b0, 255
			drow[o+4], drow[o+5], drow[o+6], drow[o+7] = r1, g1, b1, 255
		}
	}
}

// convertNV12ToRGBA decodes a planar NV12 buffer into an RGBA8 destination.
func convertNV12ToRGBA(src, dst []byte, width, height int) {
	yPlane := src[:width*height]
	uvPlane := src[width*height:]
	for row := 0; row < height; row++ {
		uvRow := uvPlane[(row/2)*width:]
		drow := dst[row*width*4 : (row+1)*width*4]
		yrow := yPlane[row*width : (row+1)*width]
		for x := 0; x < width; x++ {
			u := uvRow[(x/2)*2]
			v := uvRow[(x/2)*2+1]
			r, g, b := yuvToRGB709(yrow[x], u, v)
			o := x * 4
			drow[o], drow[o+1], drow[o+2], drow[o+3] = r, g, b, 255
		}
	}
}

// ToNV12 returns a new Frame in NV12 format, converting through RGBA8 if
// necessary.
func (f *Frame) ToNV12() (*Frame, error) {
	rgba := f
	if f.Format != RGBA8 {
		var err error
		rgba, err = f.ToRGBA()
		if err != nil {
			return nil, fmt.Errorf("frame: ToNV12: %w", err)
		}
	}

	out := New(NV12, f.Width, f.Height)
	out.Timestamp = f.Timestamp
	width, height := f.Width, f.Height
	yPlane := out.Bytes[:width*height]
	uvPlane := out.Bytes[width*height:]

	src := rgba.Bytes
	for row := 0; row < height; row++ {
		srow := src[row*width*4 : (row+1)*width*4]
		yrow := yPlane[row*width : (row+1)*width]
		for x := 0; x < width; x++ {
			o := x * 4
			y, u, v := rgbToYUV709(srow[o], srow[o+1], srow[o+2])
			yrow[x] = y
			_ = u
			_ = v
		}
	}

	// Chroma is subsampled 2x2: average the four u,v samples of each block
	// rather than keeping only the top-left pixel's value, matching the
	// box filter a real NV12 encoder applies.
	for row := 0; row < height; row += 2 {
		rows := 1
		if row+1 < height {
			rows = 2
		}
		for x := 0; x < width; x += 2 {
			cols := 1
			if x+1 < width {
				cols = 2
			}
			var usum, vsum int32
			for dy := 0; dy < rows; dy++ {
				srow := src[(row+dy)*width*4 : (row+dy+1)*width*4]
				for dx := 0; dx < cols; dx++ {
					o := (x + dx) * 4
					_, u, v := rgbToYUV709(srow[o], srow[o+1], srow[o+2])
					usum += int32(u)
					vsum += int32(v)
				}
			}
			n := int32(rows * cols)
			uvRow := uvPlane[(row/2)*width:]
			uvRow[(x/2)*2] = byte((usum + n/2) / n)
			uvRow[(x/2)*2+1] = byte((vsum + n/2) / n)
		}
	}

	return out, nil
}

// ToYUYV returns a new Frame in YUYV format, converting through RGBA8 if
// necessary.
func (f *Frame) ToYUYV() (*Frame, error) {
	return f.toPacked422(true)
}

// ToUYVY returns a new Frame in UYVY format, converting through RGBA8 if
// necessary.
func (f *Frame) ToUYVY() (*Frame, error) {
	return f.toPacked422(false)
}

func (f *Frame) toPacked422(yFirst bool) (*Frame, error) {
	rgba := f
	if f.Format != RGBA8 {
		var err error
		rgba, err = f.ToRGBA()
		if err != nil {
			return nil, fmt.Errorf("frame: toPacked422: %w", err)
		}
	}

	format := YUYV
	if !yFirst {
		format = UYVY
	}
	out := New(format, f.Width, f.Height)
	out.Timestamp = f.Timestamp

	src := rgba.Bytes
	width, height := f.Width, f.Height
	for row := 0; row < height; row++ {
		srow := src[row*width*4 : (row+1)*width*4]
		drow := out.Bytes[row*width*2 : (row+1)*width*2]
		for x, o := 0, 0; x+2 <= width; x, o = x+2, o+4 {
			si := x * 4
			y0, u0, v0 := rgbToYUV709(srow[si], srow[si+1], srow[si+2])
			y1, u1, v1 := rgbToYUV709(srow[si+4], srow[si+5], srow[si+6])
			u := avg(u0, u1)
			v := avg(v0, v1)
			if yFirst {
				drow[o], drow[o+1], drow[o+2], drow[o+3] = y0, u, y1, v
			} else {
				drow[o], drow[o+1], drow[o+2], drow[o+3] = u, y0, v, y1
			}
		}
	}

	return out, nil
}

func avg(a, b byte) byte {
	return byte((uint16(a) + uint16(b)) / 2)
}
