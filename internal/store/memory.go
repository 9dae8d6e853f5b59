package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// MemoryTaskStore keeps tasks in process memory. Records are never evicted.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	now   func() time.Time
}

// NewMemoryTaskStore creates an empty in-memory store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[string]*domain.Task),
		now:   time.Now,
	}
}

// Create inserts a new queued task built from spec.
func (s *MemoryTaskStore) Create(ctx context.Context, spec domain.TaskSpec) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}

	task, err := domain.NewTask(spec, s.now())
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task
	return task.Clone(), nil
}

// Get returns a snapshot of the task.
func (s *MemoryTaskStore) Get(ctx context.Context, id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Update applies mutation to a working copy and stores it only if the
// mutation succeeds and the result is still valid.
func (s *MemoryTaskStore) Update(ctx context.Context, id string, mutation TaskMutation) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}

	working := current.Clone()
	if err := mutation(&working); err != nil {
		return current.Clone(), err
	}
	if err := working.Validate(); err != nil {
		return current.Clone(), fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	s.tasks[id] = &working
	return working.Clone(), nil
}

// Counts returns the number of total and active tasks.
func (s *MemoryTaskStore) Counts(ctx context.Context) (TaskCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := TaskCounts{Total: len(s.tasks)}
	for _, task := range s.tasks {
		if !task.Status.IsTerminal() {
			counts.Active++
		}
	}
	return counts, nil
}

// Ensure MemoryTaskStore implements TaskStore
var _ TaskStore = (*MemoryTaskStore)(nil)
