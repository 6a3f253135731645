//go:build !nogpu

package shader

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// passthroughFragmentWGSL samples its single input texture unchanged. It
// exists so a texture of one size/stage format can be drawn into a
// differently-sized render target (the window presenter's surface
// texture) through the same fullscreen-triangle draw every stage uses,
// rather than requiring the two to match exactly.
const passthroughFragmentWGSL = `
@group(0) @binding(0) var srcTex: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;

@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(srcTex, srcSampler, uv);
}
`

// Blitter draws one texture into another through a minimal passthrough
// pipeline, reusing the fullscreen-triangle vertex shader every shader
// stage uses. Grounded on the same draw sequence as drawStage; the
// window presenter uses it to resolve the pipeline's final output into
// its window-sized surface texture.
type Blitter struct {
	device hal.Device
	queue  hal.Queue

	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
}

// NewBlitter compiles the passthrough pipeline against dev.
func NewBlitter(dev *Device) (*Blitter, error) {
	if dev == nil || !dev.IsOpen() {
		return nil, fmt.Errorf("shader: NewBlitter: %w", ErrNotInitialized)
	}
	device, queue := dev.Raw()

	vsModule, err := compileVertexModule(device)
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: %w", err)
	}

	spirvBytes, err := naga.Compile(passthroughFragmentWGSL)
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: compile passthrough fragment: %w", err)
	}
	fsModule, err := CreateShaderModule(device, "camfx-blit-fs", &CompiledStage{
		SPIRV:      bytesToSPIRVWords(spirvBytes),
		EntryPoint: defaultEntryPoint,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: %w", err)
	}

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "camfx-blit-layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: create bind group layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "camfx-blit-pipe-layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: create pipeline layout: %w", err)
	}

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "camfx-blit-pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     vsModule,
			EntryPoint: vertexEntryPoint,
		},
		Fragment: &hal.FragmentState{
			Module:     fsModule,
			EntryPoint: defaultEntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    stageColorFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: create render pipeline: %w", err)
	}

	sampler, err := buildStageSampler(device)
	if err != nil {
		return nil, fmt.Errorf("shader: NewBlitter: %w", err)
	}

	return &Blitter{
		device:     device,
		queue:      queue,
		layout:     layout,
		pipeLayout: pipeLayout,
		pipeline:   pipeline,
		sampler:    sampler,
	}, nil
}

// Blit draws src into dst's full extent, resampling if the two differ in
// size.
func (b *Blitter) Blit(src, dst *GPUTexture) error {
	if src == nil || dst == nil {
		return fmt.Errorf("shader: Blit: src or dst texture is nil")
	}

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "camfx-blit-bindgroup",
		Layout: b.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureBinding{View: src.View()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: b.sampler}},
		},
	})
	if err != nil {
		return fmt.Errorf("shader: Blit: create bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bg)

	return drawStage(b.device, b.queue, b.pipeline, bg, dst.View(), "blit")
}

// Close releases the blitter's GPU resources.
func (b *Blitter) Close() {
	if b.device == nil {
		return
	}
	if b.pipeline != nil {
		b.device.DestroyRenderPipeline(b.pipeline)
	}
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
	}
	if b.layout != nil {
		b.device.DestroyBindGroupLayout(b.layout)
	}
	if b.sampler != nil {
		b.device.DestroySampler(b.sampler)
	}
}
