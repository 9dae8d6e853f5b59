package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/events"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/redact"
)

// generationJob runs one task's generator. It is the only writer of its
// task after creation.
type generationJob struct {
	d         *Dispatcher
	handle    *Handle
	task      domain.Task
	generator generation.Generator
	req       generation.Request
}

// ID returns the task id.
func (j *generationJob) ID() string {
	return j.task.ID
}

// Execute drives the task from queued to a terminal status. poolCtx is
// cancelled when the dispatcher shuts down.
func (j *generationJob) Execute(poolCtx context.Context) error {
	d := j.d
	defer j.handle.finish()
	defer d.untrack(j.handle)

	logger := d.logger.With("task_id", j.task.ID, "media_type", j.req.Kind)
	storeCtx := context.WithoutCancel(poolCtx)

	if poolCtx.Err() != nil {
		return j.fail(storeCtx, FailureShutdown, poolCtx.Err())
	}

	ctx, cancel := context.WithCancel(j.handle.ctx)
	defer cancel()
	if d.cfg.GenerationTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d.cfg.GenerationTimeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(poolCtx, cancel)
	defer stop()

	if _, err := d.store.Update(storeCtx, j.task.ID, func(t *domain.Task) error {
		return t.MarkProcessing()
	}); err != nil {
		return fmt.Errorf("failed to mark task processing: %w", err)
	}
	logger.Debug("generation started")

	rep := &taskReporter{job: j}
	genErr := j.run(ctx, rep)

	if final, ok := rep.result(); ok {
		logger.Info("generation completed", "duration_ms", final.CompletedAt.Sub(final.CreatedAt).Milliseconds())
		d.emit(storeCtx, events.TaskCompleted, final)
		return nil
	}

	var reason string
	switch {
	case poolCtx.Err() != nil:
		reason = FailureShutdown
	case j.handle.ctx.Err() != nil:
		reason = FailureCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		reason = FailureTimedOut
	case genErr != nil:
		reason = redact.Error(genErr)
	default:
		genErr = generation.ErrIncompleteGeneration
		reason = genErr.Error()
	}
	if genErr == nil {
		genErr = errors.New(reason)
	}

	logger.Warn("generation failed", "reason", reason)
	return j.fail(storeCtx, reason, genErr)
}

// run calls the generator, converting a panic into an error.
func (j *generationJob) run(ctx context.Context, rep generation.Reporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: generator panic: %v", generation.ErrGenerationFailed, r)
		}
	}()
	return j.generator.Generate(ctx, j.req, rep)
}

func (j *generationJob) fail(ctx context.Context, reason string, cause error) error {
	if _, err := j.d.failTask(ctx, j.task.ID, reason); err != nil {
		return fmt.Errorf("failed to record task failure %q: %w", reason, err)
	}
	return cause
}
