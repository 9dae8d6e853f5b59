package domain

import "fmt"

// MediaKind identifies what a task produces.
type MediaKind string

// Supported media kinds.
const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
	MediaKindText  MediaKind = "text"
)

// MediaKinds returns every supported kind in a stable order.
func MediaKinds() []MediaKind {
	return []MediaKind{MediaKindImage, MediaKindVideo, MediaKindAudio, MediaKindText}
}

// ParseMediaKind checks s against the supported set. Matching is exact:
// case and surrounding whitespace are significant.
func ParseMediaKind(s string) (MediaKind, error) {
	kind := MediaKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
	return kind, nil
}

// Valid reports whether k is one of the supported kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaKindImage, MediaKindVideo, MediaKindAudio, MediaKindText:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (k MediaKind) String() string {
	return string(k)
}
