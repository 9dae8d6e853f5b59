package generation

import (
	"fmt"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// Registry maps each media kind to the generator that serves it.
type Registry struct {
	image Generator
	video Generator
	audio Generator
	text  Generator
}

// NewRegistry creates a registry with one generator per media kind.
// A nil generator leaves that kind unserved.
func NewRegistry(image, video, audio, text Generator) *Registry {
	return &Registry{
		image: image,
		video: video,
		audio: audio,
		text:  text,
	}
}

// For returns the generator for kind.
func (r *Registry) For(kind domain.MediaKind) (Generator, error) {
	var g Generator
	switch kind {
	case domain.MediaKindImage:
		g = r.image
	case domain.MediaKindVideo:
		g = r.video
	case domain.MediaKindAudio:
		g = r.audio
	case domain.MediaKindText:
		g = r.text
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, kind)
	}

	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoGenerator, kind)
	}
	return g, nil
}
