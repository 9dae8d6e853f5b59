package simulated

import (
	"context"
	"time"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

// Config controls the pacing of simulated generators.
type Config struct {
	// StageDelay is the pause before each stage of image, video and audio jobs
	StageDelay time.Duration

	// WordDelay is the pause before each word of text jobs
	WordDelay time.Duration
}

// DefaultConfig returns a Config with the pacing of a live demo.
func DefaultConfig() Config {
	return Config{
		StageDelay: 500 * time.Millisecond,
		WordDelay:  100 * time.Millisecond,
	}
}

// stagePlan is an ordered list of stages; the last one must be at 100.
type stagePlan []domain.Stage

// run reports each stage in order, pausing delay before each one. finish
// fills the result fields of the final stage.
func (p stagePlan) run(
	ctx context.Context,
	delay time.Duration,
	rep generation.Reporter,
	finish func(stage *domain.Stage),
) error {
	for _, stage := range p {
		if err := generation.Wait(ctx, delay); err != nil {
			return err
		}
		if stage.IsFinal() {
			finish(&stage)
		}
		if err := rep.Report(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}
