// Package segmentation runs person-segmentation inference on a dedicated
// goroutine and publishes the latest alpha mask to the render loop via a
// mailbox, grounded in the same session-lifecycle hygiene (options →
// session → destroy options, session persists) used by the ONNX Runtime
// pipeline in the example corpus.
package segmentation

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Normalize selects the pixel-value range a model's input tensor expects
// (SPEC_FULL.md §4.3 resolves spec.md §9's open question by making this a
// per-model field fixed at load time).
type Normalize int

const (
	// NormalizeUnit maps bytes to [0, 1].
	NormalizeUnit Normalize = iota
	// NormalizeSigned maps bytes to [-1, 1].
	NormalizeSigned
)

// ModelSpec describes one loaded segmentation model: its input
// dimensions and the normalisation its weights were trained with.
type ModelSpec struct {
	Path           string
	InputW, InputH int
	Normalize      Normalize
	IntraOpThreads int
	InterOpThreads int
}

// Model wraps one loaded ONNX Runtime session for person segmentation.
type Model struct {
	spec    ModelSpec
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// Load creates a session-options object, configures thread caps, builds
// the session, and destroys the options (the session keeps its own
// copy of everything it needs), matching the iluha78-FD vision
// pipeline's create-options/create-session/destroy-options sequence.
func Load(spec ModelSpec) (*Model, error) {
	if spec.InputW <= 0 || spec.InputH <= 0 {
		return nil, fmt.Errorf("segmentation: Load: invalid model input size %dx%d", spec.InputW, spec.InputH)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("segmentation: Load: new session options: %w", err)
	}
	defer opts.Destroy()

	if spec.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(spec.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("segmentation: Load: set intra_op_threads: %w", err)
		}
	}
	if spec.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(spec.InterOpThreads); err != nil {
			return nil, fmt.Errorf("segmentation: Load: set inter_op_threads: %w", err)
		}
	}

	inputShape := ort.NewShape(1, 3, int64(spec.InputH), int64(spec.InputW))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("segmentation: Load: allocate input tensor: %w", err)
	}

	// Alpha/mask output assumed single-channel at the model's input
	// resolution; models that disagree fail at Run() with a shape
	// mismatch surfaced as an inference error (logged, frame skipped).
	outputShape := ort.NewShape(1, 1, int64(spec.InputH), int64(spec.InputW))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("segmentation: Load: allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(spec.Path,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		opts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("segmentation: Load: new session: %w", err)
	}

	return &Model{spec: spec, session: session, input: input, output: output}, nil
}

// Run executes one inference pass over a letterboxed, normalised planar
// float buffer already sized to spec.InputW x spec.InputH and returns
// the raw single-channel output plane.
func (m *Model) Run(planar []float32) ([]float32, error) {
	copy(m.input.GetData(), planar)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("segmentation: Run: %w", err)
	}
	out := m.output.GetData()
	cp := make([]float32, len(out))
	copy(cp, out)
	return cp, nil
}

// Close releases the session and its tensors.
func (m *Model) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}
