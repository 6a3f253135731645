// Package capture owns the camera handle and publishes the latest decoded
// frame from a dedicated goroutine, grounded in the same open/stream/poll
// lifecycle a V4L2 camera driver exposes.
package capture

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
	"github.com/gogpu/camfx/mailbox"
)

// ModeSeed is one (resolution, pixel format, fps) candidate tried in order
// from highest to lowest quality when opening the camera
// (SPEC_FULL.md §4.2).
type ModeSeed struct {
	Width, Height int
	Format        frame.Format
	FPS           int
}

// Config configures a capture Worker.
type Config struct {
	// Device identifies the camera: an index ("0") or a platform device
	// path/name, backend-dependent.
	Device string

	// Seeds is tried in order; the first seed that successfully opens and
	// starts streaming wins.
	Seeds []ModeSeed

	// UpgradeToNativeMode, when true, attempts to switch to the camera's
	// highest-resolution/fps supported mode after a seed succeeds,
	// reverting to the seed on failure.
	UpgradeToNativeMode bool

	// MaxWidth and MaxHeight bound which seeds are tried, 0 = unbounded.
	// The native-mode upgrade does not apply them: it may switch to a mode
	// larger than either bound.
	MaxWidth, MaxHeight int
}

// backend is the platform-specific capture implementation a Worker drives.
// It owns device handle details; Worker supplies the cross-platform
// lifecycle and mailbox handoff.
type backend interface {
	// captureOne blocks until one frame is available, decodes it to RGBA,
	// and returns it.
	captureOne() (*frame.Frame, error)
	// close releases the device.
	close() error
}

// Worker owns one camera and runs its capture loop on a dedicated
// goroutine (SPEC_FULL.md §4.2, §5).
type Worker struct {
	backend backend
	width   int
	height  int

	box     *mailbox.Mailbox[*frame.Frame]
	stop    chan struct{}
	stopped atomic.Bool
	done    chan struct{}
}

// Open tries Config.Seeds in order, highest quality first, picking the
// first one that opens and streams. On success it optionally attempts a
// native-mode upgrade, reverting to the seed on failure, then starts the
// capture loop.
func Open(cfg Config) (*Worker, int, int, error) {
	if len(cfg.Seeds) == 0 {
		return nil, 0, 0, fmt.Errorf("capture: Open: %w", ErrNoSeeds)
	}

	var (
		b        backend
		w, h     int
		seedUsed ModeSeed
		opened   bool
	)
	for _, seed := range cfg.Seeds {
		if cfg.MaxWidth > 0 && seed.Width > cfg.MaxWidth {
			continue
		}
		if cfg.MaxHeight > 0 && seed.Height > cfg.MaxHeight {
			continue
		}
		candidate, err := openBackend(cfg.Device, seed)
		if err != nil {
			camfx.Logger().Debug("capture: seed failed", "device", cfg.Device, "seed", seed, "error", err)
			continue
		}
		b, w, h = candidate, seed.Width, seed.Height
		seedUsed = seed
		opened = true
		break
	}
	if !opened {
		return nil, 0, 0, fmt.Errorf("capture: Open: %w: device %s", ErrAllSeedsFailed, cfg.Device)
	}

	if cfg.UpgradeToNativeMode {
		if upgraded, uw, uh, err := tryUpgrade(b, cfg.Device); err == nil {
			b, w, h = upgraded, uw, uh
		} else {
			camfx.Logger().Debug("capture: native-mode upgrade failed, reverting to seed mode", "error", err)
			if up, ok := b.(modeUpgrader); ok {
				if rerr := up.switchMode(seedUsed); rerr != nil {
					_ = b.close()
					return nil, 0, 0, fmt.Errorf("capture: Open: revert to seed mode: %w", rerr)
				}
			}
		}
	}

	worker := &Worker{
		backend: b,
		width:   w,
		height:  h,
		box:     mailbox.New[*frame.Frame](),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go worker.run()

	return worker, w, h, nil
}

// run is the dedicated capture loop. Every iteration captures one frame
// and submits it to the mailbox using the keep-newest policy: a new frame
// always overwrites whatever the consumer hasn't read yet
// (SPEC_FULL.md §9, open question resolved as keep-newest).
func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		f, err := w.backend.captureOne()
		if err != nil {
			camfx.Logger().Debug("capture: decode error, continuing", "error", err)
			continue
		}
		w.box.Submit(f)
	}
}

// LatestFrame returns the most recently captured frame, or nil if none has
// been published since the last call. Never blocks.
func (w *Worker) LatestFrame() *frame.Frame {
	f, ok := w.box.Poll()
	if !ok {
		return nil
	}
	return f
}

// Drop signals the capture loop to stop and joins it.
func (w *Worker) Drop() {
	if w.stopped.Swap(true) {
		return
	}
	close(w.stop)
	<-w.done
	if err := w.backend.close(); err != nil {
		camfx.Logger().Warn("capture: error closing device", "error", err)
	}
}
