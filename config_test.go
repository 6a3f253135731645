package camfx

import "testing"

func TestDiffConfigDetectsEachField(t *testing.T) {
	base := Config{
		Camera: "0", Width: 1280, Height: 720, FPS: 30,
		Output:  OutputWindow,
		Shaders: []string{"a.frag"},
	}

	cases := []struct {
		name   string
		modify func(c Config) Config
		want   func(ConfigDiff) bool
	}{
		{"shaders", func(c Config) Config { c.Shaders = []string{"a.frag", "b.frag"}; return c },
			func(d ConfigDiff) bool { return d.ShadersChanged && !d.AuxiliaryChanged }},
		{"auxiliary", func(c Config) Config {
			c.AuxiliaryTextures = []AuxiliaryTexture{{Kind: AuxiliaryImage, Path: "x.png"}}
			return c
		}, func(d ConfigDiff) bool { return d.AuxiliaryChanged }},
		{"dimensions", func(c Config) Config { c.Width = 640; return c },
			func(d ConfigDiff) bool { return d.DimensionsChanged && d.RequiresRestart() }},
		{"fps", func(c Config) Config { c.FPS = 60; return c },
			func(d ConfigDiff) bool { return d.FPSChanged && d.RequiresRestart() }},
		{"camera", func(c Config) Config { c.Camera = "1"; return c },
			func(d ConfigDiff) bool { return d.CameraChanged && d.RequiresRestart() }},
		{"output", func(c Config) Config { c.Output = OutputVirtualCamera; return c },
			func(d ConfigDiff) bool { return d.OutputChanged && d.RequiresRestart() }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			next := c.modify(base.Clone())
			diff := DiffConfig(base, next)
			if !diff.Any() {
				t.Fatalf("DiffConfig: Any() = false, want true")
			}
			if !c.want(diff) {
				t.Errorf("DiffConfig: unexpected diff %+v", diff)
			}
		})
	}
}

func TestDiffConfigNoChange(t *testing.T) {
	base := Config{Camera: "0", Width: 1280, Height: 720, FPS: 30, Shaders: []string{"a.frag"}}
	diff := DiffConfig(base, base.Clone())
	if diff.Any() {
		t.Errorf("DiffConfig(unchanged): Any() = true, want false, got %+v", diff)
	}
}

func TestCloneDeepCopiesSlices(t *testing.T) {
	base := Config{
		Shaders:           []string{"a.frag"},
		AuxiliaryTextures: []AuxiliaryTexture{{Kind: AuxiliaryImage, Path: "x.png"}},
	}
	clone := base.Clone()
	clone.Shaders[0] = "b.frag"
	clone.AuxiliaryTextures[0].Path = "y.png"

	if base.Shaders[0] != "a.frag" {
		t.Errorf("Clone: mutating clone.Shaders affected original")
	}
	if base.AuxiliaryTextures[0].Path != "x.png" {
		t.Errorf("Clone: mutating clone.AuxiliaryTextures affected original")
	}
}
