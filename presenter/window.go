package presenter

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
	"github.com/gogpu/camfx/shader"
)

// WindowPresenter owns a platform window and shares the pipeline's GPU
// device: the shader chain's final output texture is resolved into a
// window-sized surface texture by a passthrough draw on that device, then
// read back once into a CPU buffer that ebiten's own render loop blits to
// the screen, so every presented frame passes through system memory
// (SPEC_FULL.md §4.6.1).
//
// The GPU draw and the on-screen draw run on different schedules: ebiten
// owns the window's vsync loop (grounded on the teacher's
// EbitenOutput/Draw split in video_backend_ebiten.go) while Present is
// called once per application tick. Present only updates the latest
// frame buffer under frameMu; Draw reads whatever was written most
// recently the next time ebiten calls it.
type WindowPresenter struct {
	device *shader.Device

	mu      sync.Mutex
	width   int
	height  int
	blitter *shader.Blitter
	surface *shader.GPUTexture

	frameMu  sync.RWMutex
	frameBuf []byte
	screen   *ebiten.Image

	started bool
}

// NewWindowPresenter builds the passthrough pipeline used to draw the
// shader chain's output texture into the window's surface texture each
// tick, and starts the window's own render loop in the background.
func NewWindowPresenter(device *shader.Device, width, height int) (*WindowPresenter, error) {
	if device == nil || !device.IsOpen() {
		return nil, fmt.Errorf("presenter: NewWindowPresenter: %w", shader.ErrNotInitialized)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("presenter: NewWindowPresenter: %w", shader.ErrInvalidDimensions)
	}

	blitter, err := shader.NewBlitter(device)
	if err != nil {
		return nil, fmt.Errorf("presenter: NewWindowPresenter: %w", err)
	}
	surface, err := shader.CreateTexture(device, shader.TextureConfig{
		Width: width, Height: height, Format: shader.TextureFormatRGBA8, Label: "window-surface",
		Usage: shader.StageOutputUsage,
	})
	if err != nil {
		blitter.Close()
		return nil, fmt.Errorf("presenter: NewWindowPresenter: %w", err)
	}

	w := &WindowPresenter{
		device:   device,
		width:    width,
		height:   height,
		blitter:  blitter,
		surface:  surface,
		frameBuf: make([]byte, width*height*4),
	}

	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("camfx")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)

	go func() {
		if err := ebiten.RunGame(w); err != nil {
			camfx.Logger().Warn("presenter: window render loop exited", "error", err)
		}
	}()
	w.started = true

	return w, nil
}

// Resize reconfigures the surface for a new window size
// (SPEC_FULL.md §4.6.1). The surface texture and host-side frame buffer
// are rebuilt lazily on the next Present rather than here, so Resize
// never touches the GPU on a presenter that hasn't opened a device yet.
func (w *WindowPresenter) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("presenter: Resize: %w", shader.ErrInvalidDimensions)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width, w.height = width, height
	if w.started {
		ebiten.SetWindowSize(width, height)
	}
	return nil
}

// Present resolves the pipeline's final output texture into the
// window's surface texture via the shared passthrough blit pipeline,
// reads it back, and hands the pixels to the window's render loop
// (SPEC_FULL.md §4.6.1, §4.5.3 steps 5-8).
func (w *WindowPresenter) Present(output *shader.GPUTexture) error {
	if output == nil {
		return fmt.Errorf("presenter: Present: output texture is nil")
	}

	w.mu.Lock()
	if w.surface == nil || w.surface.Width() != w.width || w.surface.Height() != w.height {
		if w.surface != nil {
			w.surface.Close()
		}
		surface, err := shader.CreateTexture(w.device, shader.TextureConfig{
			Width: w.width, Height: w.height, Format: shader.TextureFormatRGBA8, Label: "window-surface",
			Usage: shader.StageOutputUsage,
		})
		if err != nil {
			w.mu.Unlock()
			return fmt.Errorf("presenter: Present: rebuild surface: %w", err)
		}
		w.surface = surface
	}
	surface, blitter := w.surface, w.blitter
	w.mu.Unlock()

	if blitter == nil || surface == nil {
		return fmt.Errorf("presenter: Present: %w", shader.ErrNotInitialized)
	}

	if err := blitter.Blit(output, surface); err != nil {
		return fmt.Errorf("presenter: Present: blit: %w", err)
	}

	readback, err := surface.DownloadFrame()
	if err != nil {
		return fmt.Errorf("presenter: Present: readback: %w", err)
	}

	w.frameMu.Lock()
	if len(w.frameBuf) != len(readback.Bytes) {
		w.frameBuf = make([]byte, len(readback.Bytes))
	}
	copy(w.frameBuf, readback.Bytes)
	w.frameMu.Unlock()

	return nil
}

// Update implements ebiten.Game. It only watches for the window being
// closed by the user; all frame pacing is driven by Present.
func (w *WindowPresenter) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game: it blits the most recently Present-ed
// frame to the screen (grounded on EbitenOutput.Draw).
func (w *WindowPresenter) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	width, height := w.width, w.height
	w.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}

	if w.screen == nil || w.screen.Bounds().Dx() != width || w.screen.Bounds().Dy() != height {
		w.screen = ebiten.NewImage(width, height)
	}

	w.frameMu.RLock()
	if len(w.frameBuf) == width*height*4 {
		w.screen.WritePixels(w.frameBuf)
	}
	w.frameMu.RUnlock()

	screen.DrawImage(w.screen, nil)
}

// Layout implements ebiten.Game.
func (w *WindowPresenter) Layout(_, _ int) (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// WriteFrame is unused by the window presenter: the GPU-shared path
// never performs readback driven from outside Present. It exists only
// to satisfy Presenter for callers that treat every output mode
// uniformly.
func (w *WindowPresenter) WriteFrame(f *frame.Frame) error {
	return fmt.Errorf("presenter: WriteFrame: window presenter is GPU-shared, not CPU-readback")
}

// Close releases the blitter and surface texture. The shared device is
// owned by the caller and is not destroyed here.
func (w *WindowPresenter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.surface != nil {
		w.surface.Close()
		w.surface = nil
	}
	if w.blitter != nil {
		w.blitter.Close()
		w.blitter = nil
	}
	return nil
}
