package video

import (
	"time"

	"github.com/gogpu/camfx/frame"
)

// playback implements the current/next frame-selection algorithm of
// SPEC_FULL.md §4.4: on the first call it anchors playback_time to the
// caller's first timestamp, then drains frames whose pts is <= the
// elapsed playback time, keeping the latest as current, and holds the
// first frame whose pts is strictly greater as next until its time
// comes.
type playback struct {
	started bool
	start   time.Duration

	current *timedFrame
	next    *timedFrame
}

func newPlayback() *playback {
	return &playback{}
}

func (p *playback) frameAt(t time.Duration, frames <-chan timedFrame) *frame.Frame {
	if !p.started {
		p.started = true
		p.start = t
	}
	elapsed := t - p.start

	// A pending "next" frame from a previous call may now be due.
	if p.next != nil && p.next.pts <= elapsed {
		p.current = p.next
		p.next = nil
	}
	// A held "next" frame that is still not due stays held; nothing more
	// is read from the channel until it is.
	if p.next != nil {
		if p.current == nil {
			return nil
		}
		return p.current.f
	}

	for {
		select {
		case tf := <-frames:
			if tf.pts <= elapsed {
				p.current = &tf
				continue
			}
			p.next = &tf
		default:
			if p.current == nil {
				return nil
			}
			return p.current.f
		}
		if p.next != nil {
			break
		}
	}

	if p.current == nil {
		return nil
	}
	return p.current.f
}
