package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T) *Task {
	t.Helper()
	task, err := NewTask(TaskSpec{
		Prompt:    "a cat on a skateboard",
		MediaKind: MediaKindImage,
		Metadata:  map[string]any{"style": "default"},
	}, time.Now())
	require.NoError(t, err)
	return task
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	t.Run("valid spec", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		task, err := NewTask(TaskSpec{Prompt: "cat", MediaKind: MediaKindImage}, now)
		require.NoError(t, err)

		_, parseErr := uuid.Parse(task.ID)
		assert.NoError(t, parseErr, "task id should be a UUID")
		assert.Equal(t, TaskStatusQueued, task.Status)
		assert.Equal(t, 0, task.Progress)
		assert.Empty(t, task.Result)
		assert.Nil(t, task.CompletedAt)
		assert.NotNil(t, task.Metadata)
		assert.WithinDuration(t, now, task.CreatedAt, time.Second)
	})

	t.Run("fresh ids", func(t *testing.T) {
		t.Parallel()

		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			task, err := NewTask(TaskSpec{Prompt: "cat", MediaKind: MediaKindText}, time.Now())
			require.NoError(t, err)
			assert.False(t, seen[task.ID], "ids must not repeat")
			seen[task.ID] = true
		}
	})

	t.Run("metadata is copied", func(t *testing.T) {
		t.Parallel()

		meta := map[string]any{"style": "noir"}
		task, err := NewTask(TaskSpec{Prompt: "cat", MediaKind: MediaKindImage, Metadata: meta}, time.Now())
		require.NoError(t, err)

		meta["style"] = "changed"
		assert.Equal(t, "noir", task.Metadata["style"])
	})

	tests := []struct {
		name    string
		spec    TaskSpec
		wantErr error
	}{
		{"empty prompt", TaskSpec{Prompt: "  ", MediaKind: MediaKindImage}, ErrEmptyPrompt},
		{"unsupported kind", TaskSpec{Prompt: "cat", MediaKind: "holodeck"}, ErrUnsupportedKind},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			task, err := NewTask(tc.spec, time.Now())
			assert.Nil(t, task)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestTaskApply(t *testing.T) {
	t.Parallel()

	t.Run("intermediate stages stream", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t)
		require.NoError(t, task.Apply(Stage{Name: "sketching", Progress: 25}, time.Now()))
		assert.Equal(t, TaskStatusStreaming, task.Status)
		assert.Equal(t, 25, task.Progress)
		assert.Empty(t, task.Result)

		// equal progress is allowed
		require.NoError(t, task.Apply(Stage{Progress: 25}, time.Now()))
		assert.Equal(t, 25, task.Progress)
	})

	t.Run("final stage completes", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t)
		err := task.Apply(Stage{Progress: 100, Result: "data:image/svg+xml;base64,AAAA", StreamRef: "/stream/x"}, time.Now())
		require.NoError(t, err)

		assert.Equal(t, TaskStatusCompleted, task.Status)
		assert.Equal(t, MaxProgress, task.Progress)
		assert.Equal(t, "data:image/svg+xml;base64,AAAA", task.Result)
		assert.Equal(t, "/stream/x", task.StreamRef)
		assert.NotNil(t, task.CompletedAt)
		assert.NoError(t, task.Validate())
	})

	t.Run("regression rejected", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t)
		require.NoError(t, task.Apply(Stage{Progress: 50}, time.Now()))
		err := task.Apply(Stage{Progress: 40}, time.Now())
		assert.ErrorIs(t, err, ErrProgressRegression)
		assert.Equal(t, 50, task.Progress)
	})

	t.Run("out of range rejected", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t)
		assert.ErrorIs(t, task.Apply(Stage{Progress: 101}, time.Now()), ErrInvalidProgress)
		assert.ErrorIs(t, task.Apply(Stage{Progress: -1}, time.Now()), ErrInvalidProgress)
	})

	t.Run("final stage without result rejected", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t)
		assert.ErrorIs(t, task.Apply(Stage{Progress: 100}, time.Now()), ErrMissingResult)
		assert.Equal(t, TaskStatusQueued, task.Status)
	})

	t.Run("terminal tasks never change", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t)
		require.NoError(t, task.Apply(Stage{Progress: 100, Result: "done"}, time.Now()))
		before := task.Clone()

		assert.ErrorIs(t, task.Apply(Stage{Progress: 100, Result: "again"}, time.Now()), ErrTaskTerminal)
		assert.ErrorIs(t, task.Fail("late failure", time.Now()), ErrTaskTerminal)
		assert.ErrorIs(t, task.MarkProcessing(), ErrTaskTerminal)
		assert.Equal(t, before, *task)
	})
}

func TestTaskFail(t *testing.T) {
	t.Parallel()

	task := newTestTask(t)
	require.NoError(t, task.MarkProcessing())
	require.NoError(t, task.Apply(Stage{Progress: 40}, time.Now()))
	require.NoError(t, task.Fail("provider unavailable", time.Now()))

	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, 40, task.Progress)
	assert.Empty(t, task.Result)
	assert.Equal(t, "provider unavailable", task.Error)
	assert.NotNil(t, task.CompletedAt)
	assert.NoError(t, task.Validate())
}

func TestTaskMarkProcessing(t *testing.T) {
	t.Parallel()

	task := newTestTask(t)
	require.NoError(t, task.MarkProcessing())
	assert.Equal(t, TaskStatusProcessing, task.Status)

	require.NoError(t, task.Apply(Stage{Progress: 10}, time.Now()))
	require.NoError(t, task.MarkProcessing())
	assert.Equal(t, TaskStatusStreaming, task.Status, "only queued tasks move to processing")
}

func TestTaskClone(t *testing.T) {
	t.Parallel()

	task := newTestTask(t)
	require.NoError(t, task.Apply(Stage{Progress: 100, Result: "r"}, time.Now()))

	clone := task.Clone()
	clone.Metadata["style"] = "changed"
	*clone.CompletedAt = time.Time{}

	assert.Equal(t, "default", task.Metadata["style"])
	assert.False(t, task.CompletedAt.IsZero())
}

func TestTaskJSON(t *testing.T) {
	t.Parallel()

	task := newTestTask(t)
	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, task.ID, decoded["task_id"])
	assert.Equal(t, "image", decoded["media_type"])
	assert.Equal(t, "queued", decoded["status"])
	assert.Nil(t, decoded["completed_at"])
	assert.NotContains(t, decoded, "result_data")
}

func TestNewStageEvent(t *testing.T) {
	t.Parallel()

	progress := NewStageEvent("t1", Stage{Name: "sketching", Progress: 25})
	assert.Equal(t, EventProgressUpdate, progress.Type)
	assert.Equal(t, "t1", progress.TaskID)

	text := NewStageEvent("t1", Stage{Progress: 10, Text: "hello", WordCount: 1, TotalWords: 10})
	assert.Equal(t, EventTextStream, text.Type)
}
