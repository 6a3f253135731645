package video

import (
	"testing"
	"time"

	"github.com/gogpu/camfx/frame"
)

func mkTimedFrame(val byte, pts time.Duration) timedFrame {
	f := frame.New(frame.RGBA8, 1, 1)
	f.Bytes[0] = val
	return timedFrame{f: f, pts: pts}
}

func TestPlaybackAnchorsToFirstCall(t *testing.T) {
	frames := make(chan timedFrame, 4)
	frames <- mkTimedFrame(1, 0)
	p := newPlayback()

	got := p.frameAt(5*time.Second, frames)
	if got == nil || got.Bytes[0] != 1 {
		t.Fatalf("expected frame 1 on first call regardless of absolute time, got %v", got)
	}
}

func TestPlaybackAdvancesWithElapsedTime(t *testing.T) {
	frames := make(chan timedFrame, 4)
	frames <- mkTimedFrame(1, 0)
	p := newPlayback()

	if got := p.frameAt(0, frames); got == nil || got.Bytes[0] != 1 {
		t.Fatalf("expected frame 1, got %v", got)
	}

	frames <- mkTimedFrame(2, 100*time.Millisecond)
	frames <- mkTimedFrame(3, 200*time.Millisecond)

	got := p.frameAt(250*time.Millisecond, frames)
	if got == nil || got.Bytes[0] != 3 {
		t.Fatalf("expected latest ready frame (3), got %v", got)
	}
}

func TestPlaybackHoldsFutureFrameAsNext(t *testing.T) {
	frames := make(chan timedFrame, 4)
	frames <- mkTimedFrame(1, 0)
	p := newPlayback()
	p.frameAt(0, frames)

	frames <- mkTimedFrame(2, 500*time.Millisecond)

	// Not due yet: still on frame 1.
	got := p.frameAt(100*time.Millisecond, frames)
	if got == nil || got.Bytes[0] != 1 {
		t.Fatalf("expected frame 1 still current, got %v", got)
	}

	// Now due.
	got = p.frameAt(600*time.Millisecond, frames)
	if got == nil || got.Bytes[0] != 2 {
		t.Fatalf("expected frame 2 to become current, got %v", got)
	}
}

func TestPlaybackReturnsNilBeforeAnyFrame(t *testing.T) {
	frames := make(chan timedFrame)
	p := newPlayback()
	if got := p.frameAt(0, frames); got != nil {
		t.Fatalf("expected nil with no frames available, got %v", got)
	}
}
