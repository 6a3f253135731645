package frame

import (
	"bytes"
	"testing"
)

// solidRGBA builds an RGBA8 frame filled with one colour.
func solidRGBA(width, height int, r, g, b, a byte) *Frame {
	f := New(RGBA8, width, height)
	for i := 0; i < len(f.Bytes); i += 4 {
		f.Bytes[i], f.Bytes[i+1], f.Bytes[i+2], f.Bytes[i+3] = r, g, b, a
	}
	return f
}

func TestByteSizeInvariant(t *testing.T) {
	cases := []struct {
		format Format
		w, h   int
		want   int
	}{
		{RGB8, 4, 2, 24},
		{RGBA8, 4, 2, 32},
		{YUYV, 4, 2, 16},
		{UYVY, 4, 2, 16},
		{NV12, 4, 2, 12},
	}
	for _, c := range cases {
		if got := ByteSize(c.format, c.w, c.h); got != c.want {
			t.Errorf("ByteSize(%s, %d, %d) = %d, want %d", c.format, c.w, c.h, got, c.want)
		}
	}
}

func TestNewProducesExactLength(t *testing.T) {
	for _, format := range []Format{RGB8, RGBA8, YUYV, UYVY, NV12} {
		f := New(format, 16, 8)
		if len(f.Bytes) != ByteSize(format, 16, 8) {
			t.Errorf("New(%s): len(Bytes) = %d, want %d", format, len(f.Bytes), ByteSize(format, 16, 8))
		}
	}
}

func TestToRGBAIdempotent(t *testing.T) {
	src := solidRGBA(8, 4, 200, 100, 50, 255)
	out, err := src.ToRGBA()
	if err != nil {
		t.Fatalf("ToRGBA: %v", err)
	}
	if !bytes.Equal(out.Bytes, src.Bytes) {
		t.Fatalf("ToRGBA on an RGBA8 source should be a pure copy")
	}
}

func TestYUYVRoundTripPreservesLength(t *testing.T) {
	src := solidRGBA(8, 4, 128, 64, 32, 255)
	yuyv, err := src.ToYUYV()
	if err != nil {
		t.Fatalf("ToYUYV: %v", err)
	}
	if len(yuyv.Bytes) != ByteSize(YUYV, 8, 4) {
		t.Fatalf("YUYV buffer length = %d, want %d", len(yuyv.Bytes), ByteSize(YUYV, 8, 4))
	}

	back, err := yuyv.ToRGBA()
	if err != nil {
		t.Fatalf("ToRGBA: %v", err)
	}
	if len(back.Bytes) != len(src.Bytes) {
		t.Fatalf("round-tripped buffer length = %d, want %d", len(back.Bytes), len(src.Bytes))
	}
}

func TestYUYVAndUYVYAreByteSwappedPairs(t *testing.T) {
	src := solidRGBA(8, 4, 90, 150, 30, 255)

	yuyv, err := src.ToYUYV()
	if err != nil {
		t.Fatalf("ToYUYV: %v", err)
	}
	uyvy, err := src.ToUYVY()
	if err != nil {
		t.Fatalf("ToUYVY: %v", err)
	}
	if len(yuyv.Bytes) != len(uyvy.Bytes) {
		t.Fatalf("YUYV and UYVY buffers differ in length: %d vs %d", len(yuyv.Bytes), len(uyvy.Bytes))
	}

	// YUYV is Y0 U Y1 V; UYVY is U Y0 V Y1 — each 4-byte macropixel is the
	// same bytes in swapped order.
	for i := 0; i+4 <= len(yuyv.Bytes); i += 4 {
		y0, u, y1, v := yuyv.Bytes[i], yuyv.Bytes[i+1], yuyv.Bytes[i+2], yuyv.Bytes[i+3]
		wantUYVY := [4]byte{u, y0, v, y1}
		gotUYVY := [4]byte{uyvy.Bytes[i], uyvy.Bytes[i+1], uyvy.Bytes[i+2], uyvy.Bytes[i+3]}
		if wantUYVY != gotUYVY {
			t.Fatalf("macropixel %d: YUYV->UYVY swap mismatch: want %v got %v", i/4, wantUYVY, gotUYVY)
		}
	}
}

func TestNV12RoundTripPreservesLength(t *testing.T) {
	src := solidRGBA(16, 8, 10, 200, 90, 255)
	nv12, err := src.ToNV12()
	if err != nil {
		t.Fatalf("ToNV12: %v", err)
	}
	if len(nv12.Bytes) != ByteSize(NV12, 16, 8) {
		t.Fatalf("NV12 buffer length = %d, want %d", len(nv12.Bytes), ByteSize(NV12, 16, 8))
	}

	back, err := nv12.ToRGBA()
	if err != nil {
		t.Fatalf("ToRGBA: %v", err)
	}
	if len(back.Bytes) != len(src.Bytes) {
		t.Fatalf("round-tripped buffer length = %d, want %d", len(back.Bytes), len(src.Bytes))
	}
}

// TestToNV12ChromaIsBlockAverage builds a frame with vertical stripes
// (columns alternate between two colors) so every 2x2 chroma block
// straddles both colors, and checks the written u,v is the average of
// the two, not just the top-left pixel's value.
func TestToNV12ChromaIsBlockAverage(t *testing.T) {
	const width, height = 4, 4
	colorA := [3]byte{10, 200, 90}
	colorB := [3]byte{240, 20, 60}

	src := New(RGBA8, width, height)
	for row := 0; row < height; row++ {
		for x := 0; x < width; x++ {
			c := colorA
			if x%2 == 1 {
				c = colorB
			}
			o := (row*width + x) * 4
			src.Bytes[o], src.Bytes[o+1], src.Bytes[o+2], src.Bytes[o+3] = c[0], c[1], c[2], 255
		}
	}

	nv12, err := src.ToNV12()
	if err != nil {
		t.Fatalf("ToNV12: %v", err)
	}

	_, uA, vA := rgbToYUV709(colorA[0], colorA[1], colorA[2])
	_, uB, vB := rgbToYUV709(colorB[0], colorB[1], colorB[2])
	wantU := byte((int32(uA) + int32(uB) + 1) / 2)
	wantV := byte((int32(vA) + int32(vB) + 1) / 2)

	uvPlane := nv12.Bytes[width*height:]
	gotU, gotV := uvPlane[0], uvPlane[1]
	if gotU != wantU || gotV != wantV {
		t.Fatalf("block (0,0) chroma = (%d, %d), want block average (%d, %d)", gotU, gotV, wantU, wantV)
	}
	if gotU == uA && gotV == vA {
		t.Fatalf("block (0,0) chroma equals the top-left pixel alone (%d, %d); chroma is not being averaged", uA, vA)
	}
}

func TestShortBufferRejected(t *testing.T) {
	f := &Frame{Width: 4, Height: 4, Format: RGBA8, Bytes: make([]byte, 4)}
	if _, err := f.ToRGBA(); err == nil {
		t.Fatal("expected error for short buffer, got nil")
	}
}
