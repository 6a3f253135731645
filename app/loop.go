// Package app wires capture, segmentation, the shader pipeline, auxiliary
// video/image sources, and the window or virtual-camera presenter into
// the single per-tick application loop described in SPEC_FULL.md §4.7.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/capture"
	"github.com/gogpu/camfx/frame"
	"github.com/gogpu/camfx/presenter"
	"github.com/gogpu/camfx/presenter/vcam"
	"github.com/gogpu/camfx/segmentation"
	"github.com/gogpu/camfx/shader"
)

const defaultFPS = 30

// Loop owns every long-lived component of one running application
// instance: the shared GPU device, the shader pipeline, the capture
// worker, an optional segmentation worker, auxiliary sources, and the
// configured presenter. Exactly one Loop exists per process
// (SPEC_FULL.md §4.7, §9 shared-device design note).
//
// Loop paces both output modes itself with an internal ticker rather than
// waiting on a platform present callback. In window mode the presenter's
// ebiten render loop runs on its own schedule and only draws whatever
// frame Present copied last; it does not drive Loop's ticks.
type Loop struct {
	mu  sync.Mutex
	cfg camfx.Config

	device   *shader.Device
	pipeline *shader.Pipeline
	capture  *capture.Worker
	seg      *segmentation.Worker
	aux      []auxSource

	window *presenter.WindowPresenter
	vcam   vcam.Sink

	modelSpec     *segmentation.ModelSpec
	frameDuration time.Duration
	ticker        *time.Ticker
	startTime     time.Time

	runStarted atomic.Bool
	stop       chan struct{}
	done       chan struct{}
}

// New opens the GPU device, the camera, the shader pipeline, and the
// configured presenter, then starts the capture and (if the shader chain
// uses it) segmentation workers. modelSpec may be nil; a pipeline that
// uses the mask binding with no model configured still runs, falling
// back to the segmentation worker's constant no-mask behavior
// (SPEC_FULL.md §4.3).
func New(cfg camfx.Config, modelSpec *segmentation.ModelSpec) (*Loop, error) {
	cfg = cfg.Clone()

	device, err := shader.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("app: New: open device: %w", err)
	}

	pipeline, err := shader.New(shader.PipelineConfig{
		Device:      device,
		OutputW:     cfg.Width,
		OutputH:     cfg.Height,
		ShaderPaths: cfg.Shaders,
	})
	if err != nil {
		device.Close()
		return nil, fmt.Errorf("app: New: build pipeline: %w", err)
	}

	camWorker, _, _, err := capture.Open(captureConfig(cfg))
	if err != nil {
		pipeline.Close()
		device.Close()
		return nil, fmt.Errorf("app: New: open camera: %w", err)
	}

	var seg *segmentation.Worker
	if pipeline.UsesMaskBinding() {
		seg, err = openSegmentationWorker(modelSpec)
		if err != nil {
			camWorker.Drop()
			pipeline.Close()
			device.Close()
			return nil, fmt.Errorf("app: New: %w", err)
		}
	}

	auxSources, err := openAuxSources(cfg.AuxiliaryTextures)
	if err != nil {
		if seg != nil {
			seg.Close()
		}
		camWorker.Drop()
		pipeline.Close()
		device.Close()
		return nil, fmt.Errorf("app: New: %w", err)
	}

	l := &Loop{
		cfg:           cfg,
		device:        device,
		pipeline:      pipeline,
		capture:       camWorker,
		seg:           seg,
		aux:           auxSources,
		modelSpec:     modelSpec,
		frameDuration: frameDuration(cfg.FPS),
		startTime:     time.Now(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	switch cfg.Output {
	case camfx.OutputWindow:
		l.window, err = presenter.NewWindowPresenter(device, cfg.Width, cfg.Height)
	case camfx.OutputVirtualCamera:
		l.vcam, err = vcam.Open(vcam.Config{
			Device: cfg.VirtualCameraDevice,
			Width:  cfg.Width,
			Height: cfg.Height,
			FPS:    cfg.FPS,
		})
	default:
		err = fmt.Errorf("app: New: unknown output mode %q", cfg.Output)
	}
	if err != nil {
		l.closeComponents()
		return nil, fmt.Errorf("app: New: open presenter: %w", err)
	}

	return l, nil
}

// openSegmentationWorker loads the model if one is configured, logging
// and degrading to a nil-model worker (constant no-mask) when it isn't,
// since the shader chain referencing the mask binding doesn't by itself
// require a model to be present (SPEC_FULL.md §4.3).
func openSegmentationWorker(spec *segmentation.ModelSpec) (*segmentation.Worker, error) {
	if spec == nil {
		camfx.Logger().Warn("app: shader chain uses mask binding but no segmentation model is configured")
		return segmentation.NewWorker(nil), nil
	}
	model, err := segmentation.Load(*spec)
	if err != nil {
		return nil, fmt.Errorf("load segmentation model: %w", err)
	}
	return segmentation.NewWorker(model), nil
}

// captureConfig builds the mode-seed list tried in order: the same
// requested resolution negotiated first in YUYV, then NV12, then RGB24,
// mirroring a V4L2 driver's willingness to serve whichever of these
// formats it natively supports (SPEC_FULL.md §4.2).
func captureConfig(cfg camfx.Config) capture.Config {
	fps := cfg.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	return capture.Config{
		Device: cfg.Camera,
		Seeds: []capture.ModeSeed{
			{Width: cfg.Width, Height: cfg.Height, Format: frame.YUYV, FPS: fps},
			{Width: cfg.Width, Height: cfg.Height, Format: frame.NV12, FPS: fps},
			{Width: cfg.Width, Height: cfg.Height, Format: frame.RGB8, FPS: fps},
		},
		UpgradeToNativeMode: true,
		MaxWidth:            cfg.MaxInputWidth,
		MaxHeight:           cfg.MaxInputHeight,
	}
}

func frameDuration(fps int) time.Duration {
	if fps <= 0 {
		fps = defaultFPS
	}
	return time.Second / time.Duration(fps)
}

// Run ticks the application loop at the configured frame rate until ctx
// is cancelled or Close is called (SPEC_FULL.md §4.7).
func (l *Loop) Run(ctx context.Context) error {
	if !l.runStarted.CompareAndSwap(false, true) {
		return fmt.Errorf("app: Run: already running")
	}
	defer close(l.done)

	l.mu.Lock()
	l.ticker = time.NewTicker(l.frameDuration)
	l.mu.Unlock()
	defer l.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.ticker.C:
			l.tick()
		}
	}
}

// tick runs one iteration of SPEC_FULL.md §4.7's per-frame algorithm:
// read the latest camera frame non-blocking (skipping the tick if none
// is available yet), submit it for segmentation, poll the latest mask,
// sample every auxiliary source at the current playback time, execute
// the shader chain, and hand the result to the presenter.
func (l *Loop) tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cam := l.capture.LatestFrame()
	if cam == nil {
		return
	}

	var mask *frame.Frame
	if l.seg != nil {
		l.seg.TrySubmit(cam)
		if m, ok := l.seg.PollMask(); ok {
			mask = m
		}
	}

	elapsed := time.Since(l.startTime)
	var auxFrames [camfx.MaxAuxiliaryTextures]*frame.Frame
	for i, src := range l.aux {
		if i >= camfx.MaxAuxiliaryTextures {
			break
		}
		auxFrames[i] = src.frameAt(elapsed)
	}

	output, err := l.pipeline.Execute(shader.FrameInput{Camera: cam, Mask: mask, Aux: auxFrames})
	if err != nil {
		camfx.Logger().Warn("app: tick: pipeline execute failed, skipping frame", "error", err)
		return
	}

	l.present(output)
}

func (l *Loop) present(output *shader.GPUTexture) {
	switch l.cfg.Output {
	case camfx.OutputWindow:
		if err := l.window.Present(output); err != nil {
			camfx.Logger().Warn("app: tick: window present failed", "error", err)
		}
	case camfx.OutputVirtualCamera:
		readback, err := output.DownloadFrame()
		if err != nil {
			camfx.Logger().Warn("app: tick: texture readback unavailable, dropping frame", "error", err)
			return
		}
		if err := l.vcam.WriteFrame(readback); err == vcam.ErrWouldBlock {
			camfx.Logger().Warn("app: tick: virtual camera sink would block, dropping frame")
		} else if err != nil {
			camfx.Logger().Warn("app: tick: virtual camera write failed", "error", err)
		}
	}
}

// Reconfigure applies a live configuration change per SPEC_FULL.md §4.7:
// shader/auxiliary changes rebuild the pipeline and auxiliary sources in
// place, dimension/fps/camera changes restart the capture worker, and an
// output-mode change is logged and ignored since switching presenters
// mid-run is unsupported.
func (l *Loop) Reconfigure(next camfx.Config) error {
	next = next.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()

	diff := camfx.DiffConfig(l.cfg, next)
	if !diff.Any() {
		return nil
	}

	if diff.OutputChanged {
		camfx.Logger().Warn("app: Reconfigure: output mode change requires a restart, ignoring",
			"previous", l.cfg.Output, "requested", next.Output)
	}

	if diff.ShadersChanged || diff.AuxiliaryChanged {
		camfx.Logger().Warn("app: Reconfigure: rebuilding shader pipeline",
			"shaders_changed", diff.ShadersChanged, "auxiliary_changed", diff.AuxiliaryChanged)
		if err := l.rebuildPipeline(next); err != nil {
			return fmt.Errorf("app: Reconfigure: %w", err)
		}
	}

	if diff.CameraChanged || diff.DimensionsChanged || diff.FPSChanged {
		camfx.Logger().Warn("app: Reconfigure: restarting capture worker",
			"camera_changed", diff.CameraChanged, "dimensions_changed", diff.DimensionsChanged, "fps_changed", diff.FPSChanged)
		if err := l.restartCapture(next); err != nil {
			return fmt.Errorf("app: Reconfigure: %w", err)
		}
	}

	l.cfg = next
	return nil
}

func (l *Loop) rebuildPipeline(next camfx.Config) error {
	newPipeline, err := shader.New(shader.PipelineConfig{
		Device:      l.device,
		OutputW:     next.Width,
		OutputH:     next.Height,
		ShaderPaths: next.Shaders,
	})
	if err != nil {
		return fmt.Errorf("rebuild pipeline: %w", err)
	}

	newAux, err := openAuxSources(next.AuxiliaryTextures)
	if err != nil {
		newPipeline.Close()
		return fmt.Errorf("rebuild auxiliary sources: %w", err)
	}

	usesMask := newPipeline.UsesMaskBinding()
	if usesMask && l.seg == nil {
		seg, err := openSegmentationWorker(l.modelSpec)
		if err != nil {
			newPipeline.Close()
			for _, a := range newAux {
				a.close()
			}
			return fmt.Errorf("start segmentation worker: %w", err)
		}
		l.seg = seg
	} else if !usesMask && l.seg != nil {
		l.seg.Close()
		l.seg = nil
	}

	oldPipeline := l.pipeline
	oldAux := l.aux
	l.pipeline = newPipeline
	l.aux = newAux

	oldPipeline.Close()
	for _, a := range oldAux {
		a.close()
	}
	return nil
}

func (l *Loop) restartCapture(next camfx.Config) error {
	newWorker, _, _, err := capture.Open(captureConfig(next))
	if err != nil {
		return fmt.Errorf("restart capture: %w", err)
	}
	l.capture.Drop()
	l.capture = newWorker
	l.frameDuration = frameDuration(next.FPS)
	if l.ticker != nil {
		l.ticker.Reset(l.frameDuration)
	}
	return nil
}

// closeComponents releases everything but the Loop's own stop/done
// channels; used both by a failed New and by Close.
func (l *Loop) closeComponents() {
	if l.window != nil {
		l.window.Close()
	}
	if l.vcam != nil {
		l.vcam.Close()
	}
	for _, a := range l.aux {
		a.close()
	}
	if l.seg != nil {
		l.seg.Close()
	}
	l.capture.Drop()
	l.pipeline.Close()
	l.device.Close()
}

// Close stops the tick loop and tears down every owned component in
// presenter-first order, so no worker is asked to produce output after
// its consumer is gone (SPEC_FULL.md §6.5).
func (l *Loop) Close() {
	select {
	case <-l.stop:
		return
	default:
		close(l.stop)
	}
	if l.runStarted.Load() {
		<-l.done
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeComponents()
}
