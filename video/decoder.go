package video

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
)

// frameChanDepth is the bounded-channel depth providing the backpressure
// described in SPEC_FULL.md §4.4: the decode goroutine blocks writing to
// it when the consumer is slow.
const frameChanDepth = 5

// timedFrame pairs a decoded RGBA frame with its playback timestamp
// (frame_index / fps, with the index counted on across loop restarts).
type timedFrame struct {
	f   *frame.Frame
	pts time.Duration
}

// Decoder owns one ffmpeg subprocess decoding a single auxiliary video
// or image source to raw RGBA frames on a dedicated goroutine
// (SPEC_FULL.md §4.4).
type Decoder struct {
	ctx    context.Context
	cancel context.CancelFunc

	mediaURL         string
	width, height    int
	fps              float64
	duration         time.Duration

	frames chan timedFrame

	stopped atomic.Bool
	done    chan struct{}

	playback *playback
}

// Open resolves the source (through a streaming-platform resolver when
// applicable), probes its geometry, and starts the decode loop.
func Open(pathOrURL string) (*Decoder, error) {
	ctx, cancel := context.WithCancel(context.Background())

	mediaURL, err := resolveMediaURL(ctx, pathOrURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("video: Open: %w", err)
	}

	w, h, fps, dur, err := probe(ctx, mediaURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("video: Open: %w", err)
	}
	if fps <= 0 {
		fps = 30
	}

	d := &Decoder{
		ctx:      ctx,
		cancel:   cancel,
		mediaURL: mediaURL,
		width:    w,
		height:   h,
		fps:      fps,
		duration: dur,
		frames:   make(chan timedFrame, frameChanDepth),
		done:     make(chan struct{}),
		playback: newPlayback(),
	}

	go d.run()
	return d, nil
}

// Width, Height, FPS, and Duration report the probed source geometry.
func (d *Decoder) Width() int              { return d.width }
func (d *Decoder) Height() int             { return d.height }
func (d *Decoder) FPS() float64            { return d.fps }
func (d *Decoder) Duration() time.Duration { return d.duration }

// run spawns ffmpeg, decodes fixed-size RGBA frames from its stdout, and
// restarts the subprocess on end-of-stream to loop playback
// (SPEC_FULL.md §4.4).
func (d *Decoder) run() {
	defer close(d.done)
	frameSize := d.width * d.height * 4
	index := int64(0)

	for {
		if d.ctx.Err() != nil {
			return
		}

		cmd := exec.CommandContext(d.ctx, "ffmpeg",
			"-i", d.mediaURL,
			"-f", "rawvideo",
			"-pix_fmt", "rgba",
			"-s", fmt.Sprintf("%dx%d", d.width, d.height),
			"-an", "-")
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			camfx.Logger().Warn("video: failed to open ffmpeg stdout pipe", "error", err)
			return
		}
		if err := cmd.Start(); err != nil {
			camfx.Logger().Warn("video: failed to start ffmpeg", "error", err)
			return
		}

		for {
			buf := make([]byte, frameSize)
			if _, err := io.ReadFull(stdout, buf); err != nil {
				break // EOF or truncated read: end of stream, restart below
			}

			f := &frame.Frame{Width: d.width, Height: d.height, Format: frame.RGBA8, Bytes: buf}
			pts := time.Duration(float64(index) / d.fps * float64(time.Second))
			index++

			select {
			case d.frames <- timedFrame{f: f, pts: pts}:
			case <-d.ctx.Done():
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
				return
			}
		}

		_ = cmd.Process.Kill()
		_ = cmd.Wait()

		if d.ctx.Err() != nil {
			return
		}
		camfx.Logger().Debug("video: source reached end of stream, restarting", "source", d.mediaURL)
	}
}

// FrameAt returns the frame matching the given playback time, per the
// current/next draining algorithm of SPEC_FULL.md §4.4, or nil if
// nothing is ready yet.
func (d *Decoder) FrameAt(t time.Duration) *frame.Frame {
	return d.playback.frameAt(t, d.frames)
}

// Close stops the decode loop and kills any in-flight ffmpeg process.
func (d *Decoder) Close() {
	if d.stopped.Swap(true) {
		return
	}
	d.cancel()
	<-d.done
}
