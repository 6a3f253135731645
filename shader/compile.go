package shader

import (
	"fmt"
	"regexp"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// bindingRefRE matches a GLSL layout binding declaration, e.g.
// "layout(set = 0, binding = 3) uniform sampler2D mask;".
var bindingRefRE = regexp.MustCompile(`layout\s*\([^)]*binding\s*=\s*(\d+)[^)]*\)`)

// wgslBindingRE matches a WGSL binding attribute, e.g.
// "@group(0) @binding(3) var maskTex: texture_2d<f32>;".
var wgslBindingRE = regexp.MustCompile(`@binding\s*\(\s*(\d+)\s*\)`)

// maskBinding is the bindings-schema slot for the segmentation alpha mask
// (group 0, binding 3 — see SPEC_FULL.md §4.5.2).
const maskBinding = 3

// fragmentEntryRE matches a WGSL fragment entry point declaration, e.g.
// "@fragment fn tint(...)". GLSL shaders have no such concept (the
// front end always lowers them to a single "main").
var fragmentEntryRE = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)

// defaultEntryPoint is naga's GLSL front end's canonical entry name, and
// the fallback for WGSL sources where no @fragment annotation is found.
const defaultEntryPoint = "main"

// CompiledStage is one translated fragment shader, ready to be turned into
// a GPU shader module.
type CompiledStage struct {
	// SPIRV is the translated shader, ready for hal.Device.CreateShaderModule.
	SPIRV []uint32
	// EntryPoint is the fragment shader's entry function name.
	EntryPoint string
	// UsesMask reports whether the shader references binding 3 (the
	// segmentation alpha mask). This gates whether the pipeline spawns a
	// segmentation worker at all (SPEC_FULL.md §9).
	UsesMask bool
}

// CompileFragmentStage translates a fragment shader's source into SPIR-V
// and reflects its bindings for mask usage.
//
// source may be GLSL or the GPU's native shading language (WGSL); isGLSL
// selects the front end. Reflection for mask usage is done by scanning the
// original source for a binding-3 declaration: this is accurate for both
// languages because translation never renumbers explicit binding indices.
func CompileFragmentStage(source string, isGLSL bool) (*CompiledStage, error) {
	wgsl := source
	if isGLSL {
		translated, err := naga.TranslateGLSL(source, naga.ShaderStageFragment)
		if err != nil {
			return nil, fmt.Errorf("shader: CompileFragmentStage: translate GLSL: %w", err)
		}
		wgsl = translated
	}

	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: CompileFragmentStage: compile: %w", err)
	}

	return &CompiledStage{
		SPIRV:      bytesToSPIRVWords(spirvBytes),
		EntryPoint: fragmentEntryPoint(source, isGLSL),
		UsesMask:   usesMaskBinding(source),
	}, nil
}

// bytesToSPIRVWords packs a little-endian SPIR-V byte stream (as produced
// by naga.Compile) into the uint32 words hal.ShaderSource expects.
func bytesToSPIRVWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// fragmentEntryPoint determines the fragment shader's entry function name.
// GLSL sources always lower to "main"; WGSL sources keep whatever name the
// author gave their @fragment function.
func fragmentEntryPoint(source string, isGLSL bool) string {
	if isGLSL {
		return defaultEntryPoint
	}
	if m := fragmentEntryRE.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return defaultEntryPoint
}

// usesMaskBinding scans shader source for an explicit reference to the
// mask binding. It deliberately works on raw source rather than a parsed
// AST, so it is independent of which front end (GLSL or native) compiled
// it.
func usesMaskBinding(source string) bool {
	matches := append(bindingRefRE.FindAllStringSubmatch(source, -1), wgslBindingRE.FindAllStringSubmatch(source, -1)...)
	for _, m := range matches {
		if m[1] == fmt.Sprintf("%d", maskBinding) {
			return true
		}
	}
	return false
}

// CreateShaderModule creates a HAL shader module from a compiled stage.
func CreateShaderModule(device hal.Device, label string, stage *CompiledStage) (hal.ShaderModule, error) {
	mod, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: stage.SPIRV,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: CreateShaderModule: %w", err)
	}
	return mod, nil
}
