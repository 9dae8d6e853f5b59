package simulated

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

// Text streams a canned document about the prompt one word at a time.
// Progress after word i of n is (i+1)*100/n.
type Text struct {
	cfg Config
}

// NewText creates a simulated text generator.
func NewText(cfg Config) *Text {
	return &Text{cfg: cfg}
}

// Generate implements generation.Generator.
func (g *Text) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	words := strings.Fields(cannedDocument(req.Prompt, req.Style))
	total := len(words)

	var text strings.Builder
	for i, word := range words {
		if err := generation.Wait(ctx, g.cfg.WordDelay); err != nil {
			return err
		}
		if i > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(word)

		stage := domain.Stage{
			Progress:   (i + 1) * domain.MaxProgress / total,
			Text:       text.String(),
			WordCount:  i + 1,
			TotalWords: total,
		}
		if stage.IsFinal() {
			stage.Name = "complete"
			stage.Result = stage.Text
		}
		if err := rep.Report(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func cannedDocument(prompt, style string) string {
	return fmt.Sprintf(`# %s

This is a dynamically generated response to your prompt: %q

## Key Points:
- Real-time generation with streamed updates
- Progressive text building for better UX
- Style: %s

## Content:
Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor
incididunt ut labore et dolore magna aliqua.

## Conclusion:
Each word above was delivered as it was produced.`, prompt, prompt, style)
}

var _ generation.Generator = (*Text)(nil)
