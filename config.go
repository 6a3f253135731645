package camfx

// OutputMode selects where the shader chain's final frame is delivered.
type OutputMode string

const (
	// OutputWindow presents frames in an on-screen window surface.
	OutputWindow OutputMode = "window"

	// OutputVirtualCamera publishes frames to a platform virtual-camera sink.
	OutputVirtualCamera OutputMode = "virtual-camera"
)

// AuxiliaryKind selects how an auxiliary texture slot is populated.
type AuxiliaryKind string

const (
	// AuxiliaryImage loads a single static image once.
	AuxiliaryImage AuxiliaryKind = "image"

	// AuxiliaryVideo decodes a video (file or resolvable stream URL) and
	// presents the frame matching playback time.
	AuxiliaryVideo AuxiliaryKind = "video"
)

// MaxAuxiliaryTextures is the number of auxiliary texture slots honoured by
// the shader bindings schema (group 0, bindings 4..7).
const MaxAuxiliaryTextures = 4

// AuxiliaryTexture describes one entry in Config.AuxiliaryTextures.
type AuxiliaryTexture struct {
	Kind AuxiliaryKind `json:"kind" yaml:"kind"`
	Path string        `json:"path" yaml:"path"`
}

// Config is the record the application loop is built from. It describes
// the *shape* of configuration this module consumes; loading it from a
// file, watching it for edits, and validating CLI flags are all external
// concerns — see spec.md §6.2.
type Config struct {
	// Camera is an index ("0") or a human-readable device name.
	Camera string `json:"camera" yaml:"camera"`

	// Width and Height are the target output dimensions, independent of
	// whatever resolution the camera actually reports.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// FPS is the target frame rate the application loop paces itself to.
	FPS int `json:"fps" yaml:"fps"`

	// MaxInputWidth and MaxInputHeight bound camera mode selection; zero
	// means unbounded.
	MaxInputWidth  int `json:"max_input_width,omitempty" yaml:"max_input_width,omitempty"`
	MaxInputHeight int `json:"max_input_height,omitempty" yaml:"max_input_height,omitempty"`

	// Output selects window or virtual-camera presentation.
	Output OutputMode `json:"output" yaml:"output"`

	// VirtualCameraDevice is the platform sink identifier: a device node
	// on Linux (default "/dev/video10"), a shared-memory name on Windows,
	// or an extension UID on macOS. Empty means "use the platform default".
	VirtualCameraDevice string `json:"virtual_camera_device,omitempty" yaml:"virtual_camera_device,omitempty"`

	// Shaders is the ordered chain of fragment-shader source paths.
	Shaders []string `json:"shaders" yaml:"shaders"`

	// AuxiliaryTextures fills slots 0..3 in order; entries beyond
	// MaxAuxiliaryTextures are ignored.
	AuxiliaryTextures []AuxiliaryTexture `json:"auxiliary_textures,omitempty" yaml:"auxiliary_textures,omitempty"`
}

// Clone returns a deep copy, used by the application loop to snapshot a
// config before diffing against the next one (see ConfigSnapshot).
func (c Config) Clone() Config {
	out := c
	out.Shaders = append([]string(nil), c.Shaders...)
	out.AuxiliaryTextures = append([]AuxiliaryTexture(nil), c.AuxiliaryTextures...)
	return out
}

// ConfigSnapshot holds one config value. It carries no diff
// classification: that is computed separately by DiffConfig, which the
// application loop calls on two Config values (spec.md §4.7).
type ConfigSnapshot struct {
	Config Config
}

// ConfigDiff classifies what changed between two snapshots.
type ConfigDiff struct {
	// ShadersChanged or AuxiliaryChanged require rebuilding the shader
	// pipeline (hot-reloadable without restarting workers).
	ShadersChanged   bool
	AuxiliaryChanged bool

	// DimensionsChanged, FPSChanged, CameraChanged, and OutputChanged
	// require restarting the affected workers; OutputChanged mid-run is
	// never applied (spec.md §4.7) and is reported so the caller can log
	// and ignore it.
	DimensionsChanged bool
	FPSChanged        bool
	CameraChanged     bool
	OutputChanged     bool
}

// Any reports whether anything changed at all.
func (d ConfigDiff) Any() bool {
	return d.ShadersChanged || d.AuxiliaryChanged || d.DimensionsChanged ||
		d.FPSChanged || d.CameraChanged || d.OutputChanged
}

// RequiresRestart reports whether applying this diff requires tearing down
// and recreating workers, as opposed to a hot rebuild of the shader chain
// alone.
func (d ConfigDiff) RequiresRestart() bool {
	return d.DimensionsChanged || d.FPSChanged || d.CameraChanged || d.OutputChanged
}

// DiffConfig compares two configs field-by-field and classifies the
// change, per spec.md §4.7 and §6.2.
func DiffConfig(prev, next Config) ConfigDiff {
	var d ConfigDiff

	d.ShadersChanged = !stringSliceEqual(prev.Shaders, next.Shaders)
	d.AuxiliaryChanged = !auxSliceEqual(prev.AuxiliaryTextures, next.AuxiliaryTextures)
	d.DimensionsChanged = prev.Width != next.Width || prev.Height != next.Height ||
		prev.MaxInputWidth != next.MaxInputWidth || prev.MaxInputHeight != next.MaxInputHeight
	d.FPSChanged = prev.FPS != next.FPS
	d.CameraChanged = prev.Camera != next.Camera
	d.OutputChanged = prev.Output != next.Output

	return d
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func auxSliceEqual(a, b []AuxiliaryTexture) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
