package store

import (
	"context"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// TaskMutation changes a task in place. Returning an error aborts the update
// and leaves the stored record untouched.
type TaskMutation func(task *domain.Task) error

// TaskCounts summarizes the store for health reporting.
type TaskCounts struct {
	// Total is the number of tasks ever created
	Total int

	// Active is the number of tasks not yet completed or failed
	Active int
}

// TaskStore defines the interface for persisting generation tasks.
//
// Each task has exactly one writer after creation (the job running its
// generator), but implementations must still tolerate concurrent readers
// and concurrent writers on different tasks.
type TaskStore interface {
	// Create inserts a new queued task built from spec and returns it.
	Create(ctx context.Context, spec domain.TaskSpec) (domain.Task, error)

	// Get returns a snapshot of the task, or ErrTaskNotFound.
	Get(ctx context.Context, id string) (domain.Task, error)

	// Update applies mutation atomically and returns the resulting snapshot.
	// Returns ErrTaskNotFound for unknown ids and the mutation's own error
	// if it rejects the change.
	Update(ctx context.Context, id string, mutation TaskMutation) (domain.Task, error)

	// Counts returns the number of total and active tasks.
	Counts(ctx context.Context) (TaskCounts, error)
}
