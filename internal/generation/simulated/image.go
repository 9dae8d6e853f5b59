package simulated

import (
	"context"
	"fmt"
	"html"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

var imagePlan = stagePlan{
	{Name: "initializing", Progress: 10, Message: "Setting up canvas..."},
	{Name: "sketching", Progress: 25, Message: "Creating initial sketch..."},
	{Name: "coloring", Progress: 50, Message: "Adding colors and details..."},
	{Name: "refining", Progress: 75, Message: "Refining details and lighting..."},
	{Name: "finalizing", Progress: 90, Message: "Final touches..."},
	{Name: "complete", Progress: 100, Message: "Image generation complete!"},
}

// Image renders a gradient SVG captioned with the prompt and style. The
// task id is embedded so every task gets its own result.
type Image struct {
	cfg Config
}

// NewImage creates a simulated image generator.
func NewImage(cfg Config) *Image {
	return &Image{cfg: cfg}
}

// Generate implements generation.Generator.
func (g *Image) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	return imagePlan.run(ctx, g.cfg.StageDelay, rep, func(stage *domain.Stage) {
		stage.Result = generation.DataURL("image/svg+xml", []byte(placeholderSVG(req.TaskID, req.Prompt, req.Style)))
	})
}

const svgTemplate = `<svg id="task-%s" width="512" height="512" xmlns="http://www.w3.org/2000/svg">
<defs><linearGradient id="bg" x1="0%%" y1="0%%" x2="100%%" y2="100%%">
<stop offset="0%%" stop-color="#667eea"/><stop offset="100%%" stop-color="#764ba2"/>
</linearGradient></defs>
<rect width="512" height="512" fill="url(#bg)"/>
<text x="256" y="256" text-anchor="middle" fill="white" font-size="24" font-family="Arial">%s</text>
<text x="256" y="290" text-anchor="middle" fill="white" font-size="16" font-family="Arial">Style: %s</text>
</svg>`

func placeholderSVG(taskID, prompt, style string) string {
	caption := []rune(prompt)
	if len(caption) > 30 {
		caption = append(caption[:30], []rune("...")...)
	}
	return fmt.Sprintf(svgTemplate,
		html.EscapeString(taskID),
		html.EscapeString(string(caption)),
		html.EscapeString(style))
}

var _ generation.Generator = (*Image)(nil)
