package app

import (
	"fmt"
	"time"

	"github.com/gogpu/camfx"
	"github.com/gogpu/camfx/frame"
	"github.com/gogpu/camfx/video"
)

// auxSource is the common contract for a populated auxiliary texture
// slot: a static image always returns the same frame, a video decoder
// returns whatever its playback clock selects (SPEC_FULL.md §4.4).
type auxSource interface {
	frameAt(elapsed time.Duration) *frame.Frame
	close()
}

type imageAux struct {
	f *frame.Frame
}

func (a *imageAux) frameAt(time.Duration) *frame.Frame { return a.f }
func (a *imageAux) close()                             {}

type videoAux struct {
	dec *video.Decoder
}

func (a *videoAux) frameAt(elapsed time.Duration) *frame.Frame { return a.dec.FrameAt(elapsed) }
func (a *videoAux) close()                                     { a.dec.Close() }

// openAuxSources opens every configured auxiliary slot in order, up to
// camfx.MaxAuxiliaryTextures. On failure it closes everything opened so
// far before returning the error (SPEC_FULL.md §4.4).
func openAuxSources(entries []camfx.AuxiliaryTexture) ([]auxSource, error) {
	if len(entries) > camfx.MaxAuxiliaryTextures {
		entries = entries[:camfx.MaxAuxiliaryTextures]
	}

	sources := make([]auxSource, 0, len(entries))
	for _, e := range entries {
		src, err := openOneAux(e)
		if err != nil {
			for _, s := range sources {
				s.close()
			}
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func openOneAux(e camfx.AuxiliaryTexture) (auxSource, error) {
	switch e.Kind {
	case camfx.AuxiliaryImage:
		f, err := loadStaticImage(e.Path)
		if err != nil {
			return nil, fmt.Errorf("app: openAuxSources: %w", err)
		}
		return &imageAux{f: f}, nil
	case camfx.AuxiliaryVideo:
		dec, err := video.Open(e.Path)
		if err != nil {
			return nil, fmt.Errorf("app: openAuxSources: %w", err)
		}
		return &videoAux{dec: dec}, nil
	default:
		return nil, fmt.Errorf("app: openAuxSources: unknown auxiliary kind %q", e.Kind)
	}
}
