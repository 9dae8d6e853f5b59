package simulated

import (
	"context"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

var videoPlan = stagePlan{
	{Name: "storyboarding", Progress: 15, Message: "Creating storyboard..."},
	{Name: "rendering_frames", Progress: 40, Message: "Rendering frames..."},
	{Name: "adding_effects", Progress: 65, Message: "Adding visual effects..."},
	{Name: "audio_sync", Progress: 85, Message: "Synchronizing audio..."},
	{Name: "encoding", Progress: 95, Message: "Encoding video..."},
	{Name: "complete", Progress: 100, Message: "Video generation complete!"},
}

// Video produces a placeholder MP4 payload. Video stages take longer than
// image stages, so its delay is StageDelay scaled by 8/5.
type Video struct {
	cfg Config
}

// NewVideo creates a simulated video generator.
func NewVideo(cfg Config) *Video {
	return &Video{cfg: cfg}
}

// Generate implements generation.Generator.
func (g *Video) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	delay := g.cfg.StageDelay * 8 / 5
	return videoPlan.run(ctx, delay, rep, func(stage *domain.Stage) {
		stage.Result = generation.DataURL("video/mp4", []byte("MOCK_VIDEO_DATA"))
		stage.StreamRef = generation.StreamPath(req.TaskID)
	})
}

var _ generation.Generator = (*Video)(nil)
