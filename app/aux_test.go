package app

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
)

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "aux.png")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test png: %v", err)
	}
	defer fh.Close()
	if err := png.Encode(fh, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return path
}

func TestLoadStaticImageMatchesDimensionsAndPixels(t *testing.T) {
	path := writeTestPNG(t, 4, 3)
	f, err := loadStaticImage(path)
	if err != nil {
		t.Fatalf("loadStaticImage: %v", err)
	}
	if f.Width != 4 || f.Height != 3 {
		t.Fatalf("loadStaticImage: dims = %dx%d, want 4x3", f.Width, f.Height)
	}
	if f.Format != frame.RGBA8 {
		t.Fatalf("loadStaticImage: format = %s, want RGBA8", f.Format)
	}
	if f.Bytes[0] != 10 || f.Bytes[1] != 20 || f.Bytes[2] != 30 || f.Bytes[3] != 255 {
		t.Errorf("loadStaticImage: first pixel = %v, want [10 20 30 255]", f.Bytes[:4])
	}
}

func TestImageAuxAlwaysReturnsSameFrame(t *testing.T) {
	f := &frame.Frame{Width: 1, Height: 1, Format: frame.RGBA8, Bytes: []byte{1, 2, 3, 4}}
	a := &imageAux{f: f}

	if got := a.frameAt(0); got != f {
		t.Errorf("imageAux.frameAt(0): got different frame")
	}
	if got := a.frameAt(5 * time.Second); got != f {
		t.Errorf("imageAux.frameAt(5s): got different frame, want same static image")
	}
	a.close() // must not panic for a no-op source
}

func TestOpenAuxSourcesRejectsUnknownKind(t *testing.T) {
	_, err := openAuxSources([]camfx.AuxiliaryTexture{{Kind: "bogus", Path: "whatever"}})
	if err == nil {
		t.Fatal("openAuxSources: want error for unknown kind, got nil")
	}
}

func TestOpenAuxSourcesTruncatesBeyondMax(t *testing.T) {
	path := writeTestPNG(t, 2, 2)
	entries := make([]camfx.AuxiliaryTexture, camfx.MaxAuxiliaryTextures+2)
	for i := range entries {
		entries[i] = camfx.AuxiliaryTexture{Kind: camfx.AuxiliaryImage, Path: path}
	}

	sources, err := openAuxSources(entries)
	if err != nil {
		t.Fatalf("openAuxSources: %v", err)
	}
	defer func() {
		for _, s := range sources {
			s.close()
		}
	}()
	if len(sources) != camfx.MaxAuxiliaryTextures {
		t.Errorf("openAuxSources: got %d sources, want %d", len(sources), camfx.MaxAuxiliaryTextures)
	}
}

func TestOpenAuxSourcesFailsWhenALaterEntryIsMissing(t *testing.T) {
	path := writeTestPNG(t, 2, 2)
	_, err := openAuxSources([]camfx.AuxiliaryTexture{
		{Kind: camfx.AuxiliaryImage, Path: path},
		{Kind: camfx.AuxiliaryImage, Path: filepath.Join(t.TempDir(), "missing.png")},
	})
	if err == nil {
		t.Fatal("openAuxSources: want error for missing file, got nil")
	}
}
