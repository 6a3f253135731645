package capture

import "fmt"

// modeUpgrader is implemented by backends that can report their full list
// of supported modes and switch to one after opening at a seed
// (SPEC_FULL.md §4.2).
type modeUpgrader interface {
	backend
	supportedModes() ([]ModeSeed, error)
	switchMode(ModeSeed) error
}

// tryUpgrade queries the backend's supported modes and switches to the
// highest-resolution/fps one. If the backend doesn't support querying
// modes, or switching fails, the caller should keep the original backend.
func tryUpgrade(b backend, device string) (backend, int, int, error) {
	up, ok := b.(modeUpgrader)
	if !ok {
		return nil, 0, 0, fmt.Errorf("capture: tryUpgrade: %w: device %s does not support mode query", ErrNotSupported, device)
	}

	modes, err := up.supportedModes()
	if err != nil || len(modes) == 0 {
		return nil, 0, 0, fmt.Errorf("capture: tryUpgrade: query modes: %w", err)
	}

	best := modes[0]
	for _, m := range modes[1:] {
		if m.Width*m.Height > best.Width*best.Height ||
			(m.Width*m.Height == best.Width*best.Height && m.FPS > best.FPS) {
			best = m
		}
	}

	if err := up.switchMode(best); err != nil {
		return nil, 0, 0, fmt.Errorf("capture: tryUpgrade: switch mode: %w", err)
	}

	return up, best.Width, best.Height, nil
}
