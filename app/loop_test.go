package app

import (
	"testing"
	"time"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
)

func TestCaptureConfigTriesYUYVThenNV12ThenRGB8(t *testing.T) {
	cfg := camfx.Config{Camera: "1", Width: 640, Height: 480, FPS: 25, MaxInputWidth: 1920, MaxInputHeight: 1080}
	cc := captureConfig(cfg)

	if cc.Device != "1" {
		t.Errorf("captureConfig: Device = %q, want %q", cc.Device, "1")
	}
	if cc.MaxWidth != 1920 || cc.MaxHeight != 1080 {
		t.Errorf("captureConfig: max bounds = %dx%d, want 1920x1080", cc.MaxWidth, cc.MaxHeight)
	}
	wantFormats := []frame.Format{frame.YUYV, frame.NV12, frame.RGB8}
	if len(cc.Seeds) != len(wantFormats) {
		t.Fatalf("captureConfig: got %d seeds, want %d", len(cc.Seeds), len(wantFormats))
	}
	for i, want := range wantFormats {
		seed := cc.Seeds[i]
		if seed.Format != want || seed.Width != 640 || seed.Height != 480 || seed.FPS != 25 {
			t.Errorf("captureConfig: seed[%d] = %+v, want format %s at 640x480@25", i, seed, want)
		}
	}
}

func TestCaptureConfigDefaultsFPS(t *testing.T) {
	cc := captureConfig(camfx.Config{Width: 640, Height: 480})
	for i, seed := range cc.Seeds {
		if seed.FPS != defaultFPS {
			t.Errorf("captureConfig: seed[%d].FPS = %d, want default %d", i, seed.FPS, defaultFPS)
		}
	}
}

func TestFrameDurationDefaultsWhenFPSNotPositive(t *testing.T) {
	for _, fps := range []int{0, -5} {
		got := frameDuration(fps)
		want := time.Second / time.Duration(defaultFPS)
		if got != want {
			t.Errorf("frameDuration(%d) = %v, want %v", fps, got, want)
		}
	}
}

func TestFrameDurationMatchesConfiguredFPS(t *testing.T) {
	got := frameDuration(50)
	want := time.Second / 50
	if got != want {
		t.Errorf("frameDuration(50) = %v, want %v", got, want)
	}
}
