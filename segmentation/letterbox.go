package segmentation

import "github.com/gogpu/camfx/frame"

// letterbox holds the geometry needed to map a model's square/rectangular
// input plane back onto the original frame after inference
// (SPEC_FULL.md §4.3).
type letterbox struct {
	scale              float64
	padX, padY         int
	scaledW, scaledH   int
	srcW, srcH         int
	dstW, dstH         int
}

// computeLetterbox fits srcW x srcH into dstW x dstH preserving aspect
// ratio, centering the result with black padding on the shorter axis.
func computeLetterbox(srcW, srcH, dstW, dstH int) letterbox {
	scale := min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	scaledW := int(float64(srcW) * scale)
	scaledH := int(float64(srcH) * scale)
	return letterbox{
		scale:   scale,
		padX:    (dstW - scaledW) / 2,
		padY:    (dstH - scaledH) / 2,
		scaledW: scaledW,
		scaledH: scaledH,
		srcW:    srcW,
		srcH:    srcH,
		dstW:    dstW,
		dstH:    dstH,
	}
}

// preprocess letterbox-resizes an RGBA frame into a planar CHW float
// buffer at the model's input dimensions, normalised per spec.Normalize,
// with black padding outside the scaled image.
func preprocess(f *frame.Frame, spec ModelSpec) ([]float32, letterbox, error) {
	rgba, err := f.ToRGBA()
	if err != nil {
		return nil, letterbox{}, err
	}

	lb := computeLetterbox(rgba.Width, rgba.Height, spec.InputW, spec.InputH)

	planeSize := spec.InputW * spec.InputH
	out := make([]float32, planeSize*3)

	for y := 0; y < lb.scaledH; y++ {
		srcY := int(float64(y) / lb.scale)
		if srcY >= rgba.Height {
			srcY = rgba.Height - 1
		}
		dstY := y + lb.padY
		for x := 0; x < lb.scaledW; x++ {
			srcX := int(float64(x) / lb.scale)
			if srcX >= rgba.Width {
				srcX = rgba.Width - 1
			}
			dstX := x + lb.padX

			si := (srcY*rgba.Width + srcX) * 4
			r, g, b := rgba.Bytes[si], rgba.Bytes[si+1], rgba.Bytes[si+2]

			di := dstY*spec.InputW + dstX
			out[0*planeSize+di] = normalize(r, spec.Normalize)
			out[1*planeSize+di] = normalize(g, spec.Normalize)
			out[2*planeSize+di] = normalize(b, spec.Normalize)
		}
	}

	return out, lb, nil
}

func normalize(v byte, n Normalize) float32 {
	f := float32(v) / 255.0
	if n == NormalizeSigned {
		return f*2 - 1
	}
	return f
}

// postprocess crops the letterbox padding from the model's output plane
// and nearest-neighbor resizes it back to the original frame dimensions,
// producing an 8-bit grayscale mask (255 = person, 0 = background).
func postprocess(out []float32, lb letterbox, spec ModelSpec) *frame.Frame {
	// RGB8's 3 bytes/pixel is wasteful for a single-channel mask, but
	// frame.Format has no dedicated single-channel type; every channel
	// carries the same value and the shader pipeline's R8 upload path
	// reads channel 0.
	mask := frame.New(frame.RGB8, lb.srcW, lb.srcH)

	for y := 0; y < lb.srcH; y++ {
		my := int(float64(y) * lb.scale)
		my += lb.padY
		if my < 0 {
			my = 0
		}
		if my >= spec.InputH {
			my = spec.InputH - 1
		}
		for x := 0; x < lb.srcW; x++ {
			mx := int(float64(x) * lb.scale)
			mx += lb.padX
			if mx < 0 {
				mx = 0
			}
			if mx >= spec.InputW {
				mx = spec.InputW - 1
			}

			v := out[my*spec.InputW+mx]
			b := clamp8(v * 255)
			di := (y*lb.srcW + x) * 3
			mask.Bytes[di] = b
			mask.Bytes[di+1] = b
			mask.Bytes[di+2] = b
		}
	}
	return mask
}

func clamp8(v float32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
