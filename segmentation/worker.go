package segmentation

import (
	"sync/atomic"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
	"github.com/gogpu/camfx/mailbox"
)

// Worker runs person-segmentation inference on a dedicated goroutine. It
// is created only when a loaded shader references the mask binding
// (SPEC_FULL.md §4.3, §4.5.1).
type Worker struct {
	model *Model

	in  chan *frame.Frame
	out *mailbox.Mailbox[*frame.Frame]

	stop    chan struct{}
	stopped atomic.Bool
	done    chan struct{}
}

// NewWorker starts the inference loop for the given model. A nil model
// is valid: TrySubmit still accepts frames but PollMask always reports
// none, and callers fall back to the constant-255 default mask
// (SPEC_FULL.md §4.3).
func NewWorker(model *Model) *Worker {
	w := &Worker{
		model: model,
		in:    make(chan *frame.Frame, 1),
		out:   mailbox.New[*frame.Frame](),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// TrySubmit offers a frame for segmentation. Non-blocking: if the worker
// is still processing the previous frame, this one is dropped and a
// debug event is logged (SPEC_FULL.md §4.3 failure policy).
func (w *Worker) TrySubmit(f *frame.Frame) bool {
	select {
	case w.in <- f:
		return true
	default:
		camfx.Logger().Debug("segmentation: worker busy, dropping frame")
		return false
	}
}

// PollMask returns the most recent mask result, draining any
// intermediate ones. Returns (nil, false) if no result is available
// yet.
func (w *Worker) PollMask() (*frame.Frame, bool) {
	return w.out.Poll()
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		var f *frame.Frame
		select {
		case <-w.stop:
			return
		case f = <-w.in:
		}
		if w.model == nil {
			continue
		}

		planar, lb, err := preprocess(f, w.model.spec)
		if err != nil {
			camfx.Logger().Warn("segmentation: preprocess failed, skipping frame", "error", err)
			continue
		}

		result, err := w.model.Run(planar)
		if err != nil {
			camfx.Logger().Warn("segmentation: inference failed, skipping frame", "error", err)
			continue
		}

		mask := postprocess(result, lb, w.model.spec)
		w.out.Submit(mask)
	}
}

// Close stops the inference loop and releases the model.
func (w *Worker) Close() {
	if w.stopped.Swap(true) {
		return
	}
	close(w.stop)
	<-w.done
	if w.model != nil {
		w.model.Close()
	}
}
