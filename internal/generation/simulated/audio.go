package simulated

import (
	"context"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

var audioPlan = stagePlan{
	{Name: "analyzing_text", Progress: 20, Message: "Analyzing prompt..."},
	{Name: "synthesizing_voice", Progress: 55, Message: "Synthesizing voice..."},
	{Name: "mastering", Progress: 85, Message: "Mastering audio..."},
	{Name: "complete", Progress: 100, Message: "Audio generation complete!"},
}

// Audio produces a placeholder MP3 payload.
type Audio struct {
	cfg Config
}

// NewAudio creates a simulated audio generator.
func NewAudio(cfg Config) *Audio {
	return &Audio{cfg: cfg}
}

// Generate implements generation.Generator.
func (g *Audio) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	return audioPlan.run(ctx, g.cfg.StageDelay, rep, func(stage *domain.Stage) {
		stage.Result = generation.DataURL("audio/mpeg", []byte("MOCK_AUDIO_DATA"))
		stage.StreamRef = generation.StreamPath(req.TaskID)
	})
}

var _ generation.Generator = (*Audio)(nil)
