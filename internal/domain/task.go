package domain

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusStreaming  TaskStatus = "streaming"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// MaxProgress is the progress value of a completed task.
const MaxProgress = 100

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusStreaming,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions may leave s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskSpec is everything a caller decides about a task. The identifier and
// all lifecycle fields are assigned by the system.
type TaskSpec struct {
	Prompt    string
	MediaKind MediaKind
	Metadata  map[string]any
}

// Task is the tracked lifecycle record of one generation request.
type Task struct {
	ID          string         `json:"task_id"`
	Prompt      string         `json:"prompt"`
	MediaKind   MediaKind      `json:"media_type"`
	Status      TaskStatus     `json:"status"`
	Progress    int            `json:"progress"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	Result      string         `json:"result_data,omitempty"`
	StreamRef   string         `json:"stream_url,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	Error       string         `json:"error,omitempty"`
}

// NewTask creates a queued task with a fresh identifier.
// Returns an error if the spec fails validation.
func NewTask(spec TaskSpec, now time.Time) (*Task, error) {
	task := &Task{
		ID:        uuid.NewString(),
		Prompt:    spec.Prompt,
		MediaKind: spec.MediaKind,
		Status:    TaskStatusQueued,
		Progress:  0,
		CreatedAt: now.UTC(),
		Metadata:  maps.Clone(spec.Metadata),
	}
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the structural invariants of the record.
func (t *Task) Validate() error {
	if _, err := uuid.Parse(t.ID); err != nil {
		return fmt.Errorf("%w: task id %q is not a UUID", ErrValidation, t.ID)
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if !t.MediaKind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, t.MediaKind)
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.Progress < 0 || t.Progress > MaxProgress {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, t.Progress)
	}
	if (t.Result != "") != (t.Status == TaskStatusCompleted) {
		return fmt.Errorf("%w: result must be present exactly when completed", ErrValidation)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with t.
func (t Task) Clone() Task {
	clone := t
	clone.Metadata = maps.Clone(t.Metadata)
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return clone
}

// MarkProcessing moves a queued task to processing. Tasks already past
// queued are left untouched.
func (t *Task) MarkProcessing() error {
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	if t.Status == TaskStatusQueued {
		t.Status = TaskStatusProcessing
	}
	return nil
}

// Apply records a generator stage. Intermediate stages move the task to
// streaming; a stage at MaxProgress completes it with the stage's result.
func (t *Task) Apply(stage Stage, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	if stage.Progress < 0 || stage.Progress > MaxProgress {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, stage.Progress)
	}
	if stage.Progress < t.Progress {
		return fmt.Errorf("%w: %d after %d", ErrProgressRegression, stage.Progress, t.Progress)
	}

	if stage.Progress == MaxProgress {
		if stage.Result == "" {
			return ErrMissingResult
		}
		completedAt := now.UTC()
		t.Progress = MaxProgress
		t.Status = TaskStatusCompleted
		t.Result = stage.Result
		t.StreamRef = stage.StreamRef
		t.CompletedAt = &completedAt
		return nil
	}

	t.Progress = stage.Progress
	t.Status = TaskStatusStreaming
	return nil
}

// Fail moves the task to failed with the given reason. Progress is kept as
// the last value reached.
func (t *Task) Fail(reason string, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	completedAt := now.UTC()
	t.Status = TaskStatusFailed
	t.Result = ""
	t.StreamRef = ""
	t.Error = reason
	t.CompletedAt = &completedAt
	return nil
}
