package task

import (
	"context"
	"sync"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

// taskReporter applies generator stages to the task record and pushes them
// to the task's subscribers, in report order.
type taskReporter struct {
	job *generationJob

	mu    sync.Mutex
	final *domain.Task
}

// Report records stage. Stages reported after the job's context is done or
// after the final stage are rejected.
func (r *taskReporter) Report(ctx context.Context, stage domain.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.final != nil {
		return domain.ErrTaskTerminal
	}

	d := r.job.d
	id := r.job.task.ID
	storeCtx := context.WithoutCancel(ctx)

	if stage.IsFinal() {
		stage = r.job.finalize(storeCtx, stage)
	}

	now := d.now()
	task, err := d.store.Update(storeCtx, id, func(t *domain.Task) error {
		return t.Apply(stage, now)
	})
	if err != nil {
		return err
	}
	if stage.IsFinal() {
		r.final = &task
	}

	d.publisher.Publish(storeCtx, id, domain.NewStageEvent(id, stage))
	return nil
}

func (r *taskReporter) result() (domain.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final == nil {
		return domain.Task{}, false
	}
	return *r.final, true
}

// finalize moves inline binary results to the result sink when one is
// configured and makes sure streamable kinds carry a stream reference.
func (j *generationJob) finalize(ctx context.Context, stage domain.Stage) domain.Stage {
	d := j.d
	kind := j.req.Kind

	if d.sink != nil && kind != domain.MediaKindText && generation.IsDataURL(stage.Result) {
		mimeType, data, err := generation.ParseDataURL(stage.Result)
		if err != nil {
			d.logger.Warn("final result is not a valid data URL, keeping it inline",
				"task_id", j.task.ID, "error", err)
		} else if url, err := d.sink.Store(ctx, j.task.ID, kind, mimeType, data); err != nil {
			d.logger.Error("failed to store result, keeping it inline",
				"task_id", j.task.ID, "error", err)
		} else {
			stage.Result = url
			stage.StreamRef = url
		}
	}

	if (kind == domain.MediaKindVideo || kind == domain.MediaKindAudio) && stage.StreamRef == "" {
		stage.StreamRef = generation.StreamPath(j.task.ID)
	}
	return stage
}
