package presenter

import (
	"errors"
	"testing"

	"github.com/gogpu/camfx/shader"
)

func TestNewWindowPresenterRejectsUnopenedDevice(t *testing.T) {
	_, err := NewWindowPresenter(&shader.Device{}, 640, 480)
	if !errors.Is(err, shader.ErrNotInitialized) {
		t.Fatalf("NewWindowPresenter(unopened device): err = %v, want ErrNotInitialized", err)
	}
}

func TestNewWindowPresenterRejectsNilDevice(t *testing.T) {
	_, err := NewWindowPresenter(nil, 640, 480)
	if !errors.Is(err, shader.ErrNotInitialized) {
		t.Fatalf("NewWindowPresenter(nil): err = %v, want ErrNotInitialized", err)
	}
}

func TestNewWindowPresenterRejectsInvalidDimensions(t *testing.T) {
	cases := []struct{ w, h int }{{0, 480}, {640, 0}, {-1, -1}}
	for _, c := range cases {
		_, err := NewWindowPresenter(&shader.Device{}, c.w, c.h)
		if err == nil {
			t.Errorf("NewWindowPresenter(%d, %d): want error, got nil", c.w, c.h)
		}
	}
}

func TestWindowPresenterWriteFrameAlwaysErrors(t *testing.T) {
	w := &WindowPresenter{width: 640, height: 480}
	if err := w.WriteFrame(nil); err == nil {
		t.Error("WindowPresenter.WriteFrame: want error, got nil")
	}
}

func TestWindowPresenterResizeRejectsInvalidDimensions(t *testing.T) {
	w := &WindowPresenter{width: 640, height: 480}
	if err := w.Resize(0, 480); err == nil {
		t.Error("Resize(0, 480): want error, got nil")
	}
	if err := w.Resize(320, 240); err != nil {
		t.Errorf("Resize(320, 240): unexpected error %v", err)
	}
	if w.width != 320 || w.height != 240 {
		t.Errorf("Resize: dims = %dx%d, want 320x240", w.width, w.height)
	}
}

func TestWindowPresenterCloseWithNilPassthroughDoesNotPanic(t *testing.T) {
	w := &WindowPresenter{}
	if err := w.Close(); err != nil {
		t.Errorf("Close: unexpected error %v", err)
	}
}

func TestWindowPresenterPresentRejectsNilOutput(t *testing.T) {
	w := &WindowPresenter{device: &shader.Device{}}
	if err := w.Present(nil); err == nil {
		t.Error("Present(nil): want error, got nil")
	}
}
