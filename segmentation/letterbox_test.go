package segmentation

import "testing"

func TestComputeLetterboxPadsShorterAxis(t *testing.T) {
	lb := computeLetterbox(640, 480, 256, 256)
	if lb.scaledW != 256 {
		t.Fatalf("scaledW = %d, want 256", lb.scaledW)
	}
	if lb.scaledH != 192 {
		t.Fatalf("scaledH = %d, want 192", lb.scaledH)
	}
	if lb.padY != (256-192)/2 {
		t.Fatalf("padY = %d, want %d", lb.padY, (256-192)/2)
	}
	if lb.padX != 0 {
		t.Fatalf("padX = %d, want 0", lb.padX)
	}
}

func TestNormalizeUnitRange(t *testing.T) {
	if got := normalize(0, NormalizeUnit); got != 0 {
		t.Fatalf("normalize(0, unit) = %v, want 0", got)
	}
	if got := normalize(255, NormalizeUnit); got != 1 {
		t.Fatalf("normalize(255, unit) = %v, want 1", got)
	}
}

func TestNormalizeSignedRange(t *testing.T) {
	if got := normalize(0, NormalizeSigned); got != -1 {
		t.Fatalf("normalize(0, signed) = %v, want -1", got)
	}
	if got := normalize(255, NormalizeSigned); got != 1 {
		t.Fatalf("normalize(255, signed) = %v, want 1", got)
	}
}

func TestPostprocessRoundTripsDimensions(t *testing.T) {
	spec := ModelSpec{InputW: 4, InputH: 4, Normalize: NormalizeUnit}
	lb := computeLetterbox(2, 2, spec.InputW, spec.InputH)
	out := make([]float32, spec.InputW*spec.InputH)
	for i := range out {
		out[i] = 1
	}
	mask := postprocess(out, lb, spec)
	if mask.Width != 2 || mask.Height != 2 {
		t.Fatalf("mask dims = %dx%d, want 2x2", mask.Width, mask.Height)
	}
	if mask.Bytes[0] != 255 {
		t.Fatalf("mask byte 0 = %d, want 255", mask.Bytes[0])
	}
}
