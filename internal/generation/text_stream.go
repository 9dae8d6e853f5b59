package generation

import (
	"context"
	"strings"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// TextStream turns incrementally received text into text_stream stages for
// providers that do not know the final length up front. Intermediate
// progress approaches but never reaches 100; Finish reports the final stage.
type TextStream struct {
	rep    Reporter
	text   strings.Builder
	chunks int
}

// NewTextStream creates a TextStream reporting to rep.
func NewTextStream(rep Reporter) *TextStream {
	return &TextStream{rep: rep}
}

// Write appends chunk and reports the accumulated text. Empty chunks are ignored.
func (s *TextStream) Write(ctx context.Context, chunk string) error {
	if chunk == "" {
		return nil
	}
	s.text.WriteString(chunk)
	s.chunks++

	text := s.text.String()
	return s.rep.Report(ctx, domain.Stage{
		Name:      "streaming",
		Progress:  domain.MaxProgress - 1 - (domain.MaxProgress-1)/(s.chunks+1),
		Text:      text,
		WordCount: len(strings.Fields(text)),
	})
}

// Text returns everything written so far.
func (s *TextStream) Text() string {
	return s.text.String()
}

// Finish reports the final stage with the full text as the result.
// It returns ErrInvalidResponse if nothing was written.
func (s *TextStream) Finish(ctx context.Context) error {
	text := strings.TrimSpace(s.text.String())
	if text == "" {
		return ErrInvalidResponse
	}
	words := len(strings.Fields(text))
	return s.rep.Report(ctx, domain.Stage{
		Name:       "complete",
		Progress:   domain.MaxProgress,
		Result:     text,
		Text:       text,
		WordCount:  words,
		TotalWords: words,
	})
}
