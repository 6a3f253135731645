package shader

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
)

// Binding slots for bindings-schema group 0 (SPEC_FULL.md §4.5.2).
const (
	bindingInput    = 0
	bindingSampler  = 1
	bindingUniforms = 2
	bindingMask     = 3
	bindingAuxBase  = 4
	numAuxSlots     = camfx.MaxAuxiliaryTextures
)

// Uniforms mirrors the shader-visible uniform buffer layout: elapsed time,
// output dimensions, and a per-frame random seed.
type Uniforms struct {
	Time   float32
	Width  float32
	Height float32
	Seed   float32
}

// Stage is one compiled fragment-shader pass in the chain.
type Stage struct {
	mu sync.RWMutex

	sourcePath string
	isGLSL     bool

	compiled *CompiledStage
	output   *GPUTexture

	watchFailed bool

	// GPU render resources. pipeline depends only on compiled (rebuilt
	// whenever hot-reload swaps in a new one); bindGroup depends only on
	// which textures it samples (rebuilt whenever rebuildTextures runs).
	pipeline   hal.RenderPipeline
	pipelineOf *CompiledStage
	bindGroup  hal.BindGroup
}

// UsesMask reports whether this stage's shader references the mask
// binding. Atomic relative to hot-reload: reflects whatever the most
// recently *successfully* compiled version of the shader declared.
func (s *Stage) UsesMask() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compiled != nil && s.compiled.UsesMask
}

// reload re-reads the stage's source file, recompiles it, and swaps the
// compiled program in atomically. On failure, the previous compiled
// program is retained (SPEC_FULL.md §4.5.1).
func (s *Stage) reload() error {
	src, err := os.ReadFile(s.sourcePath)
	if err != nil {
		return fmt.Errorf("shader: Stage.reload: read %s: %w", s.sourcePath, err)
	}

	compiled, err := CompileFragmentStage(string(src), s.isGLSL)
	if err != nil {
		return fmt.Errorf("shader: Stage.reload: compile %s: %w", s.sourcePath, err)
	}

	s.mu.Lock()
	s.compiled = compiled
	s.mu.Unlock()
	return nil
}

// dims tracks the dimensions the pipeline state cache was built for;
// rebuilding is triggered whenever any of these change
// (SPEC_FULL.md §4.5.3 step 5).
type dims struct {
	cameraW, cameraH int
	maskW, maskH     int
	auxW, auxH       [numAuxSlots]int
}

// Pipeline uses the shared GPU device (it never closes it) and owns the
// compiled stage chain, the per-stage
// output textures and bind groups, and the hot-reload watcher. It executes
// the per-frame algorithm described in SPEC_FULL.md §4.5.3.
type Pipeline struct {
	mu sync.Mutex

	device *Device
	stages []*Stage

	outputW, outputH int
	cached           dims
	cacheValid       bool

	camTex  *GPUTexture
	maskTex *GPUTexture
	auxTex  [numAuxSlots]*GPUTexture

	// Shared GPU render state, built once on first Execute.
	vsModule   hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	uniformBuf *Buffer

	watcher    *fsnotify.Watcher
	reloadErrs chan error

	startTime time.Time
	rng       *rand.Rand
}

// PipelineConfig configures pipeline construction.
type PipelineConfig struct {
	Device           *Device
	OutputW, OutputH int
	ShaderPaths      []string
	GLSL             bool
}

// New compiles every shader in config.ShaderPaths into a linear stage
// chain and starts the hot-reload watcher.
func New(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("shader: New: %w", ErrNilDevice)
	}
	if cfg.OutputW <= 0 || cfg.OutputH <= 0 {
		return nil, fmt.Errorf("shader: New: %w", ErrInvalidDimensions)
	}

	p := &Pipeline{
		device:    cfg.Device,
		outputW:   cfg.OutputW,
		outputH:   cfg.OutputH,
		startTime: time.Now(),
		rng:       rand.New(rand.NewSource(1)),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader: New: create watcher: %w", err)
	}
	p.watcher = watcher

	for _, path := range cfg.ShaderPaths {
		stage := &Stage{sourcePath: path, isGLSL: cfg.GLSL}
		if err := stage.reload(); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("shader: New: stage %s: %w", path, err)
		}
		if err := watcher.Add(path); err != nil {
			camfx.Logger().Warn("shader: failed to watch shader source", "path", path, "error", err)
		}
		p.stages = append(p.stages, stage)
	}

	go p.watchLoop()

	return p, nil
}

// watchLoop consumes fsnotify events and reloads the affected stage.
// Compilation errors are logged; the previous working stage is retained
// (SPEC_FULL.md §4.5.1).
func (p *Pipeline) watchLoop() {
	for {
		select {
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.reloadStageForPath(ev.Name)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			camfx.Logger().Warn("shader: hot-reload watcher error", "error", err)
		}
	}
}

func (p *Pipeline) reloadStageForPath(path string) {
	p.mu.Lock()
	var target *Stage
	for _, s := range p.stages {
		if s.sourcePath == path {
			target = s
			break
		}
	}
	p.mu.Unlock()

	if target == nil {
		return
	}
	if err := target.reload(); err != nil {
		camfx.Logger().Warn("shader: hot-reload failed, retaining previous stage", "path", path, "error", err)
		return
	}
	camfx.Logger().Info("shader: hot-reloaded stage", "path", path)
}

// UsesMaskBinding reports whether any stage in the chain references the
// mask binding. The application loop uses this to decide whether to spawn
// a segmentation worker at all (SPEC_FULL.md §9).
func (p *Pipeline) UsesMaskBinding() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.stages {
		if s.UsesMask() {
			return true
		}
	}
	return false
}

// FrameInput bundles everything one tick's Execute call needs beyond the
// camera frame itself.
type FrameInput struct {
	Camera *frame.Frame
	Mask   *frame.Frame // nil if segmentation disabled or no new mask this tick; the mask texture then keeps its contents
	Aux    [numAuxSlots]*frame.Frame
}

// Execute runs the per-frame algorithm of SPEC_FULL.md §4.5.3: it
// reconciles texture sizes, uploads changed pixel data, recompiles any
// hot-reloaded stage's pipeline, and draws every stage in order, each
// sampling the previous stage's output (or the camera texture, for stage
// 0) as its input. It returns the final stage's output texture.
func (p *Pipeline) Execute(in FrameInput) (*GPUTexture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSharedGPU(); err != nil {
		return nil, fmt.Errorf("shader: Execute: %w", err)
	}

	cam, err := in.Camera.ToRGBA()
	if err != nil {
		return nil, fmt.Errorf("shader: Execute: convert camera frame: %w", err)
	}

	next := dims{cameraW: cam.Width, cameraH: cam.Height}
	if in.Mask != nil {
		next.maskW, next.maskH = in.Mask.Width, in.Mask.Height
	} else if p.cacheValid {
		next.maskW, next.maskH = p.cached.maskW, p.cached.maskH
	}
	for i, a := range in.Aux {
		if a != nil {
			next.auxW[i], next.auxH[i] = a.Width, a.Height
		}
	}

	if !p.cacheValid || next != p.cached {
		if err := p.rebuildTextures(next); err != nil {
			return nil, fmt.Errorf("shader: Execute: rebuild textures: %w", err)
		}
		p.cached = next
		p.cacheValid = true
	}

	if err := p.uploadInputs(cam, in.Mask, in.Aux); err != nil {
		return nil, fmt.Errorf("shader: Execute: upload inputs: %w", err)
	}

	uniforms := Uniforms{
		Time:   float32(time.Since(p.startTime).Seconds()),
		Width:  float32(p.outputW),
		Height: float32(p.outputH),
		Seed:   p.rng.Float32(),
	}
	device, queue := p.device.Raw()
	queue.WriteBuffer(p.uniformBuf.Raw(), 0, uniformBytes(uniforms))

	var output *GPUTexture
	for _, stage := range p.stages {
		stage.mu.Lock()
		out := stage.output
		bg := stage.bindGroup
		if stage.pipeline == nil || stage.pipelineOf != stage.compiled {
			pipe, err := buildStagePipeline(device, p.vsModule, p.pipeLayout, stage.compiled, "stage:"+stage.sourcePath)
			if err != nil {
				stage.mu.Unlock()
				return nil, fmt.Errorf("shader: Execute: build pipeline for %s: %w", stage.sourcePath, err)
			}
			if stage.pipeline != nil {
				device.DestroyRenderPipeline(stage.pipeline)
			}
			stage.pipeline = pipe
			stage.pipelineOf = stage.compiled
		}
		pipe := stage.pipeline
		stage.mu.Unlock()

		if out == nil || bg == nil {
			return nil, fmt.Errorf("shader: Execute: stage %s has no output texture or bind group", stage.sourcePath)
		}

		if err := drawStage(device, queue, pipe, bg, out.View(), "stage:"+stage.sourcePath); err != nil {
			return nil, fmt.Errorf("shader: Execute: draw stage %s: %w", stage.sourcePath, err)
		}
		output = out
	}

	return output, nil
}

// ensureSharedGPU lazily builds the GPU resources every stage shares: the
// fullscreen-triangle vertex shader, the fixed bind group layout and
// pipeline layout, the sampler, and the uniform buffer.
func (p *Pipeline) ensureSharedGPU() error {
	if p.uniformBuf != nil {
		return nil
	}
	device, _ := p.device.Raw()

	vsModule, err := compileVertexModule(device)
	if err != nil {
		return err
	}
	layout, err := buildStageBindGroupLayout(device)
	if err != nil {
		return err
	}
	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "camfx-stage-pipe-layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("shader: ensureSharedGPU: create pipeline layout: %w", err)
	}
	sampler, err := buildStageSampler(device)
	if err != nil {
		return err
	}
	uniformBuf, err := CreateBufferSimple(device, uniformBufSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, "camfx-uniforms")
	if err != nil {
		return fmt.Errorf("shader: ensureSharedGPU: create uniform buffer: %w", err)
	}

	p.vsModule = vsModule
	p.layout = layout
	p.pipeLayout = pipeLayout
	p.sampler = sampler
	p.uniformBuf = uniformBuf
	return nil
}

// StageOutputUsage covers every role a render-target texture plays in
// this package: a render-pass color attachment (it's drawn into), a
// sampled texture (the next stage, or a blit, reads it), and a copy
// source (it can be read back for presentation). Every texture drawn
// into by drawStage or Blitter.Blit must carry this usage.
const StageOutputUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc

// rebuildTextures re-allocates the camera, output, mask, and auxiliary
// textures for new dimensions, then rebuilds every stage's bind group so
// it samples the right input texture at the new size.
func (p *Pipeline) rebuildTextures(d dims) error {
	if p.camTex != nil {
		p.camTex.Close()
	}
	camTex, err := CreateTexture(p.device, TextureConfig{
		Width: d.cameraW, Height: d.cameraH, Format: TextureFormatRGBA8, Label: "camera",
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	p.camTex = camTex

	for _, stage := range p.stages {
		stage.mu.Lock()
		if stage.output != nil {
			stage.output.Close()
		}
		tex, err := CreateTexture(p.device, TextureConfig{
			Width:  p.outputW,
			Height: p.outputH,
			Format: TextureFormatRGBA8,
			Label:  "stage-output:" + stage.sourcePath,
			Usage:  StageOutputUsage,
		})
		stage.output = tex
		stage.mu.Unlock()
		if err != nil {
			return err
		}
	}

	if p.maskTex != nil {
		p.maskTex.Close()
	}
	maskW, maskH := d.maskW, d.maskH
	if maskW == 0 || maskH == 0 {
		maskW, maskH = 1, 1 // 1x1 value-255 texture when segmentation absent
	}
	maskTex, err := CreateTexture(p.device, TextureConfig{Width: maskW, Height: maskH, Format: TextureFormatR8, Label: "mask"})
	if err != nil {
		return err
	}
	p.maskTex = maskTex
	if d.maskW == 0 || d.maskH == 0 {
		if err := maskTex.UploadFrame(&frame.Frame{Width: 1, Height: 1, Bytes: []byte{255}}); err != nil {
			return err
		}
	}

	for i := range p.auxTex {
		if p.auxTex[i] != nil {
			p.auxTex[i].Close()
		}
		w, h := d.auxW[i], d.auxH[i]
		if w == 0 || h == 0 {
			w, h = 1, 1 // 1x1 opaque-black texture for unused auxiliary slots
		}
		tex, err := CreateTexture(p.device, TextureConfig{Width: w, Height: h, Format: TextureFormatRGBA8, Label: fmt.Sprintf("aux%d", i)})
		if err != nil {
			return err
		}
		p.auxTex[i] = tex
		if d.auxW[i] == 0 || d.auxH[i] == 0 {
			if err := tex.UploadFrame(&frame.Frame{Width: 1, Height: 1, Format: frame.RGBA8, Bytes: []byte{0, 0, 0, 255}}); err != nil {
				return err
			}
		}
	}

	return p.rebuildBindGroups()
}

// rebuildBindGroups (re)creates each stage's bind group against its
// current input texture (the camera texture for stage 0, otherwise the
// previous stage's output), the shared mask and auxiliary textures.
func (p *Pipeline) rebuildBindGroups() error {
	device, _ := p.device.Raw()

	var auxViews [numAuxSlots]hal.TextureView
	for i, t := range p.auxTex {
		auxViews[i] = t.View()
	}

	var prevOutput hal.TextureView = p.camTex.View()
	for _, stage := range p.stages {
		stage.mu.Lock()
		bg, err := buildStageBindGroup(device, p.layout, prevOutput, p.maskTex.View(), auxViews, p.sampler, p.uniformBuf.Raw(), "bind:"+stage.sourcePath)
		if err != nil {
			stage.mu.Unlock()
			return fmt.Errorf("shader: rebuildBindGroups: stage %s: %w", stage.sourcePath, err)
		}
		if stage.bindGroup != nil {
			device.DestroyBindGroup(stage.bindGroup)
		}
		stage.bindGroup = bg
		out := stage.output
		stage.mu.Unlock()
		prevOutput = out.View()
	}
	return nil
}

// uploadInputs writes the camera, mask, and auxiliary pixel data to their
// respective textures. Rows are passed to queue.WriteTexture tightly
// packed (bytes-per-row = width × bytes-per-pixel); they are not padded to
// the 256-byte copy pitch. The mask texture is R8, so only channel 0 of
// each mask pixel is uploaded.
func (p *Pipeline) uploadInputs(cam *frame.Frame, mask *frame.Frame, aux [numAuxSlots]*frame.Frame) error {
	if p.camTex != nil {
		if err := p.camTex.UploadFrame(cam); err != nil {
			return fmt.Errorf("upload camera: %w", err)
		}
	}
	if mask != nil && p.maskTex != nil {
		bpp := frame.ByteSize(mask.Format, 1, 1)
		plane := make([]byte, mask.Width*mask.Height)
		for i := range plane {
			plane[i] = mask.Bytes[i*bpp]
		}
		if err := p.maskTex.UploadFrame(&frame.Frame{Width: mask.Width, Height: mask.Height, Format: mask.Format, Bytes: plane}); err != nil {
			return fmt.Errorf("upload mask: %w", err)
		}
	}
	for i, a := range aux {
		if a != nil && p.auxTex[i] != nil {
			if err := p.auxTex[i].UploadFrame(a); err != nil {
				return fmt.Errorf("upload aux[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Close tears down the watcher and every owned texture.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		p.watcher.Close()
	}

	device, _ := p.device.Raw()
	for _, s := range p.stages {
		if s.output != nil {
			s.output.Close()
		}
		if device != nil {
			if s.bindGroup != nil {
				device.DestroyBindGroup(s.bindGroup)
			}
			if s.pipeline != nil {
				device.DestroyRenderPipeline(s.pipeline)
			}
		}
	}
	if p.camTex != nil {
		p.camTex.Close()
	}
	if p.maskTex != nil {
		p.maskTex.Close()
	}
	for _, t := range p.auxTex {
		if t != nil {
			t.Close()
		}
	}

	if device != nil {
		if p.uniformBuf != nil {
			p.uniformBuf.Destroy()
		}
		if p.sampler != nil {
			device.DestroySampler(p.sampler)
		}
		if p.pipeLayout != nil {
			device.DestroyPipelineLayout(p.pipeLayout)
		}
		if p.layout != nil {
			device.DestroyBindGroupLayout(p.layout)
		}
		if p.vsModule != nil {
			device.DestroyShaderModule(p.vsModule)
		}
	}
}
