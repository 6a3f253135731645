package shader

import "testing"

func TestFragmentEntryPointGLSLAlwaysMain(t *testing.T) {
	src := `#version 450
layout(location = 0) out vec4 outColor;
void main() { outColor = vec4(1.0); }`
	if got := fragmentEntryPoint(src, true); got != defaultEntryPoint {
		t.Errorf("fragmentEntryPoint(GLSL) = %q, want %q", got, defaultEntryPoint)
	}
}

func TestFragmentEntryPointWGSLExplicitName(t *testing.T) {
	src := `
@fragment
fn tint(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}`
	if got := fragmentEntryPoint(src, false); got != "tint" {
		t.Errorf("fragmentEntryPoint(WGSL) = %q, want %q", got, "tint")
	}
}

func TestFragmentEntryPointWGSLFallsBackToMain(t *testing.T) {
	src := `// no @fragment annotation found by the scanner
fn helper() -> f32 { return 1.0; }`
	if got := fragmentEntryPoint(src, false); got != defaultEntryPoint {
		t.Errorf("fragmentEntryPoint(WGSL, no annotation) = %q, want %q", got, defaultEntryPoint)
	}
}

func TestUsesMaskBindingDetectsExplicitBinding(t *testing.T) {
	src := `layout(set = 0, binding = 3) uniform sampler2D mask;`
	if !usesMaskBinding(src) {
		t.Error("usesMaskBinding: want true for binding 3 declaration")
	}
}

func TestUsesMaskBindingFalseWhenAbsent(t *testing.T) {
	src := `layout(set = 0, binding = 0) uniform sampler2D input0;`
	if usesMaskBinding(src) {
		t.Error("usesMaskBinding: want false, no binding 3 declared")
	}
}

func TestBytesToSPIRVWordsLittleEndian(t *testing.T) {
	b := []byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00}
	words := bytesToSPIRVWords(b)
	if len(words) != 2 {
		t.Fatalf("bytesToSPIRVWords: len = %d, want 2", len(words))
	}
	if words[0] != 0x07230203 {
		t.Errorf("bytesToSPIRVWords[0] = %#x, want %#x", words[0], 0x07230203)
	}
	if words[1] != 0x00000001 {
		t.Errorf("bytesToSPIRVWords[1] = %#x, want %#x", words[1], 0x00000001)
	}
}
