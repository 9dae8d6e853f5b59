package generation

import (
	"context"
	"time"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// Request describes one generation job.
type Request struct {
	TaskID  string
	Prompt  string
	Kind    domain.MediaKind
	Style   string
	Quality string
}

// Reporter receives the progress stages of a running generation.
// A non-nil error from Report means the stage was rejected; the generator
// must stop and return that error.
type Reporter interface {
	Report(ctx context.Context, stage domain.Stage) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, stage domain.Stage) error

// Report calls f(ctx, stage).
func (f ReporterFunc) Report(ctx context.Context, stage domain.Stage) error {
	return f(ctx, stage)
}

// Generator defines the interface for producing one media artifact.
// This interface serves as a boundary between task dispatch and the
// external services (or simulations) that do the actual work.
type Generator interface {
	// Generate runs the job described by req, reporting stages with
	// non-decreasing progress to rep. The last reported stage must have
	// progress 100 and a result. Generate returns when that stage has been
	// reported, when ctx is done, or when an error occurs.
	Generate(ctx context.Context, req Request, rep Reporter) error
}

// Wait pauses for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
