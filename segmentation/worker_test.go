package segmentation

import (
	"testing"
	"time"

	"github.com/gogpu/camfx/frame"
)

func TestWorkerWithNilModelNeverProducesMask(t *testing.T) {
	w := NewWorker(nil)
	defer w.Close()

	f := frame.New(frame.RGBA8, 4, 4)
	if !w.TrySubmit(f) {
		t.Fatal("expected TrySubmit to accept first frame")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := w.PollMask(); ok {
		t.Fatal("expected no mask with nil model")
	}
}

func TestWorkerTrySubmitDropsWhenBusy(t *testing.T) {
	w := &Worker{model: nil, in: make(chan *frame.Frame, 1), stop: make(chan struct{}), done: make(chan struct{})}
	close(w.done) // loop never started; nothing drains w.in

	first := frame.New(frame.RGBA8, 2, 2)
	second := frame.New(frame.RGBA8, 2, 2)

	if !w.TrySubmit(first) {
		t.Fatal("expected first submit to fill the buffered slot")
	}
	if w.TrySubmit(second) {
		t.Fatal("expected second submit to be dropped while the slot is full")
	}
}
