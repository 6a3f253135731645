package frame

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ScaleToFit returns a new RGBA8 Frame resized so neither dimension
// exceeds maxDim, preserving aspect ratio. If the frame already fits, a
// copy converted to RGBA8 is returned unchanged in size.
func (f *Frame) ScaleToFit(maxDim int) (*Frame, error) {
	rgba, err := f.ToRGBA()
	if err != nil {
		return nil, fmt.Errorf("frame: ScaleToFit: %w", err)
	}

	if maxDim <= 0 || (f.Width <= maxDim && f.Height <= maxDim) {
		return rgba, nil
	}

	scale := float64(maxDim) / float64(max(f.Width, f.Height))
	newW := max(1, int(float64(f.Width)*scale))
	newH := max(1, int(float64(f.Height)*scale))

	src := &image.RGBA{
		Pix:    rgba.Bytes,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	out := &Frame{
		Width:     newW,
		Height:    newH,
		Format:    RGBA8,
		Timestamp: f.Timestamp,
		Bytes:     dst.Pix,
	}
	return out, nil
}
