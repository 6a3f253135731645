package shader

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// fullscreenTriangleWGSL is the shared vertex stage for every shader stage
// in the chain (and the window presenter's passthrough draw): it
// synthesizes one oversized triangle covering the viewport from
// vertex_index alone, the standard wgpu fullscreen-pass trick. No vertex
// buffer is bound; Draw is always called with vertexCount=3.
const fullscreenTriangleWGSL = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> VertexOutput {
    var out: VertexOutput;
    let x = f32((idx << 1u) & 2u);
    let y = f32(idx & 2u);
    out.uv = vec2<f32>(x, y);
    out.position = vec4<f32>(x * 2.0 - 1.0, 1.0 - y * 2.0, 0.0, 1.0);
    return out;
}
`

// vertexEntryPoint is the fullscreen-triangle vertex shader's entry name.
const vertexEntryPoint = "vs_main"

// stageColorFormat is the format every stage output and the camera texture
// are created with. Using one fixed format throughout the chain means a
// stage's output can always be sampled as the next stage's input without
// a format-conversion pass.
const stageColorFormat = gputypes.TextureFormatRGBA8Unorm

// uniformBufSize is the byte size of the Uniforms struct as laid out for
// the WGSL uniform block (4 x float32).
const uniformBufSize uint64 = 16

// compileVertexModule compiles the shared fullscreen-triangle vertex
// shader. Called once per Pipeline (cached on it by ensureSharedGPU) and
// once per Blitter.
func compileVertexModule(device hal.Device) (hal.ShaderModule, error) {
	mod, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "camfx-fullscreen-vs",
		Source: hal.ShaderSource{WGSL: fullscreenTriangleWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: compileVertexModule: %w", err)
	}
	return mod, nil
}

// buildStageBindGroupLayout describes the fixed bindings-schema every
// stage shares (SPEC_FULL.md §4.5.2): a sampled input texture, a filtering
// sampler, a uniform buffer, the segmentation mask texture, and the
// auxiliary texture slots.
func buildStageBindGroupLayout(device hal.Device) (hal.BindGroupLayout, error) {
	sampled := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		}
	}

	entries := []gputypes.BindGroupLayoutEntry{
		sampled(bindingInput),
		{
			Binding:    bindingSampler,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		},
		{
			Binding:    bindingUniforms,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		sampled(bindingMask),
	}
	for i := 0; i < numAuxSlots; i++ {
		entries = append(entries, sampled(uint32(bindingAuxBase+i))) //nolint:gosec // G115
	}

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "camfx-stage-layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: buildStageBindGroupLayout: %w", err)
	}
	return layout, nil
}

// buildStageSampler creates the single filtering sampler every stage's bind
// group binds at bindingSampler.
func buildStageSampler(device hal.Device) (hal.Sampler, error) {
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "camfx-stage-sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: buildStageSampler: %w", err)
	}
	return sampler, nil
}

// buildStagePipeline compiles one stage's fragment shader against the
// shared vertex stage and bind group layout, producing a render pipeline
// that draws into a stageColorFormat target.
func buildStagePipeline(device hal.Device, vsModule hal.ShaderModule, pipeLayout hal.PipelineLayout, compiled *CompiledStage, label string) (hal.RenderPipeline, error) {
	fsModule, err := CreateShaderModule(device, label+"-fs", compiled)
	if err != nil {
		return nil, fmt.Errorf("shader: buildStagePipeline: %w", err)
	}

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     vsModule,
			EntryPoint: vertexEntryPoint,
		},
		Fragment: &hal.FragmentState{
			Module:     fsModule,
			EntryPoint: compiled.EntryPoint,
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
		return nil, fmt.Errorf("shader: buildStagePipeline: create render pipeline: %w", err)
	}
	return pipeline, nil
}

// buildStageBindGroup binds one stage's sampled input, the shared sampler
// and uniform buffer, the segmentation mask, and the auxiliary textures.
func buildStageBindGroup(device hal.Device, layout hal.BindGroupLayout, inputView, maskView hal.TextureView, auxViews [numAuxSlots]hal.TextureView, sampler hal.Sampler, uniformBuf hal.Buffer, label string) (hal.BindGroup, error) {
	entries := []gputypes.BindGroupEntry{
		{Binding: bindingInput, Resource: gputypes.TextureBinding{View: inputView}},
		{Binding: bindingSampler, Resource: gputypes.SamplerBinding{Sampler: sampler}},
		{Binding: bindingUniforms, Resource: gputypes.BufferBinding{Buffer: uniformBuf, Offset: 0, Size: uniformBufSize}},
		{Binding: bindingMask, Resource: gputypes.TextureBinding{View: maskView}},
	}
	for i, v := range auxViews {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(bindingAuxBase + i), //nolint:gosec // G115
			Resource: gputypes.TextureBinding{View: v},
		})
	}

	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: buildStageBindGroup: %w", err)
	}
	return bg, nil
}

// drawStage records and submits a single fullscreen-triangle render pass:
// bind the stage's pipeline and bind group, draw 3 vertices, and block
// until the GPU has finished (SPEC_FULL.md §4.5.3 steps 5-8).
//
// Grounded on GPURenderSession.encodeSubmitReadback/encodeSubmitSurface:
// create+begin an encoder, record a render pass, end it, submit with a
// fence, and wait.
func drawStage(device hal.Device, queue hal.Queue, pipeline hal.RenderPipeline, bindGroup hal.BindGroup, outputView hal.TextureView, label string) error {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "-encoder"})
	if err != nil {
		return fmt.Errorf("shader: drawStage: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("shader: drawStage: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label + "-pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       outputView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("shader: drawStage: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("shader: drawStage: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("shader: drawStage: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, gpuWaitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("shader: drawStage: wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

// uniformBytes packs Uniforms into the little-endian layout the WGSL
// uniform block expects.
func uniformBytes(u Uniforms) []byte {
	b := make([]byte, uniformBufSize)
	putFloat32(b[0:4], u.Time)
	putFloat32(b[4:8], u.Width)
	putFloat32(b[8:12], u.Height)
	putFloat32(b[12:16], u.Seed)
	return b
}

func putFloat32(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
