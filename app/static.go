package app

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/gogpu/camfx/frame"
)

// loadStaticImage decodes a single image file into an RGBA8 Frame once,
// for AuxiliaryImage slots (SPEC_FULL.md §4.4). The pack carries no
// third-party image decoder, so this uses the standard library's
// image.Decode registry (image/png, image/jpeg); the pixel conversion
// itself goes through image/draw, the same stdlib package
// frame.ScaleToFit's golang.org/x/image/draw complements rather than
// replaces.
func loadStaticImage(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("app: loadStaticImage: open %s: %w", path, err)
	}
	defer fh.Close()

	src, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("app: loadStaticImage: decode %s: %w", path, err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	return &frame.Frame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: frame.RGBA8,
		Bytes:  dst.Pix,
	}, nil
}
