package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/camfx/frame"
	"github.com/gogpu/camfx/mailbox"
)

type fakeBackend struct {
	frames  chan *frame.Frame
	closed  bool
	closeCh chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{frames: make(chan *frame.Frame, 4), closeCh: make(chan struct{})}
}

func (f *fakeBackend) captureOne() (*frame.Frame, error) {
	select {
	case fr := <-f.frames:
		return fr, nil
	case <-f.closeCh:
		return nil, errors.New("fake: closed")
	}
}

func (f *fakeBackend) close() error {
	f.closed = true
	close(f.closeCh)
	return nil
}

func solidFrame(v byte) *frame.Frame {
	fr := frame.New(frame.RGBA8, 2, 2)
	for i := range fr.Bytes {
		fr.Bytes[i] = v
	}
	return fr
}

func TestWorkerDeliversLatestFrame(t *testing.T) {
	fb := newFakeBackend()
	fb.frames <- solidFrame(10)

	w := &Worker{backend: fb, box: mailbox.New[*frame.Frame](), stop: make(chan struct{}), done: make(chan struct{})}
	go w.run()
	defer close(w.stop)

	deadline := time.After(time.Second)
	for {
		if f := w.LatestFrame(); f != nil {
			if f.Bytes[0] != 10 {
				t.Fatalf("got byte %d, want 10", f.Bytes[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frame")
		default:
		}
	}
}

func TestWorkerKeepsNewestOnOverwrite(t *testing.T) {
	fb := newFakeBackend()
	w := &Worker{backend: fb, box: mailbox.New[*frame.Frame](), stop: make(chan struct{}), done: make(chan struct{})}
	go w.run()
	defer close(w.stop)

	fb.frames <- solidFrame(1)
	fb.frames <- solidFrame(2)

	var last *frame.Frame
	deadline := time.After(time.Second)
	for {
		if f := w.LatestFrame(); f != nil {
			last = f
		}
		if last != nil && last.Bytes[0] == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("never observed newest frame, last=%v", last)
		default:
		}
	}
}

func TestOpenRejectsEmptySeeds(t *testing.T) {
	_, _, _, err := Open(Config{})
	if !errors.Is(err, ErrNoSeeds) {
		t.Fatalf("got %v, want ErrNoSeeds", err)
	}
}

func TestDropIsIdempotent(t *testing.T) {
	fb := newFakeBackend()
	w := &Worker{backend: fb, box: mailbox.New[*frame.Frame](), stop: make(chan struct{}), done: make(chan struct{})}
	close(w.done)
	w.Drop()
	w.Drop()
	if !fb.closed {
		t.Fatal("expected backend to be closed")
	}
}
