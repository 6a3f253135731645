// Command camfx runs the real-time webcam shader transformer: it reads
// the configured camera, optionally runs person segmentation, renders the
// configured fragment-shader chain, and presents the result to a window
// or a virtual camera (SPEC_FULL.md §1, §6).
//
// Flag parsing here is deliberately minimal; loading configuration from a
// file and watching it for edits are external concerns (doc.go
// Non-goals).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/app"
	"github.com/gogpu/camfx/segmentation"
)

// stringList accumulates repeated occurrences of a flag, in order.
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

// auxList accumulates repeated -aux-image/-aux-video flags into
// camfx.AuxiliaryTexture entries.
type auxList []camfx.AuxiliaryTexture

func (l *auxList) add(kind camfx.AuxiliaryKind) func(string) error {
	return func(path string) error {
		*l = append(*l, camfx.AuxiliaryTexture{Kind: kind, Path: path})
		return nil
	}
}

func main() {
	if err := run(); err != nil {
		camfx.Logger().Error("camfx: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		camera      = flag.String("camera", "0", "camera index or device path")
		width       = flag.Int("width", 1280, "output width")
		height      = flag.Int("height", 720, "output height")
		fps         = flag.Int("fps", 30, "target frame rate")
		maxInputW   = flag.Int("max-input-width", 0, "bound camera mode selection, 0 = unbounded")
		maxInputH   = flag.Int("max-input-height", 0, "bound camera mode selection, 0 = unbounded")
		output      = flag.String("output", string(camfx.OutputWindow), "output mode: window or virtual-camera")
		vcamDevice  = flag.String("vcam-device", "", "virtual camera device/identifier override")
		modelPath   = flag.String("model", "", "segmentation model path, empty disables segmentation")
		modelW      = flag.Int("model-width", 256, "segmentation model input width")
		modelH      = flag.Int("model-height", 256, "segmentation model input height")
		modelSigned = flag.Bool("model-signed-normalize", false, "model expects [-1,1] input instead of [0,1]")
	)

	var shaders stringList
	flag.Var(&shaders, "shader", "fragment shader source path; repeat for a multi-stage chain")

	var auxEntries auxList
	addImage := auxEntries.add(camfx.AuxiliaryImage)
	addVideo := auxEntries.add(camfx.AuxiliaryVideo)
	flag.Func("aux-image", "static image auxiliary texture path; repeatable", addImage)
	flag.Func("aux-video", "video/stream auxiliary texture source; repeatable", addVideo)

	flag.Parse()

	if len(shaders) == 0 {
		return fmt.Errorf("camfx: at least one -shader is required")
	}

	cfg := camfx.Config{
		Camera:              *camera,
		Width:               *width,
		Height:              *height,
		FPS:                 *fps,
		MaxInputWidth:       *maxInputW,
		MaxInputHeight:      *maxInputH,
		Output:              camfx.OutputMode(*output),
		VirtualCameraDevice: *vcamDevice,
		Shaders:             shaders,
		AuxiliaryTextures:   auxEntries,
	}

	var modelSpec *segmentation.ModelSpec
	if *modelPath != "" {
		norm := segmentation.NormalizeUnit
		if *modelSigned {
			norm = segmentation.NormalizeSigned
		}
		modelSpec = &segmentation.ModelSpec{
			Path:      *modelPath,
			InputW:    *modelW,
			InputH:    *modelH,
			Normalize: norm,
		}
	}

	loop, err := app.New(cfg, modelSpec)
	if err != nil {
		return fmt.Errorf("camfx: %w", err)
	}
	defer loop.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	camfx.Logger().Info("camfx: running",
		"camera", cfg.Camera, "output", cfg.Output, "width", cfg.Width, "height", cfg.Height, "fps", cfg.FPS)

	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("camfx: %w", err)
	}
	return nil
}
