package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue implements a buffered job queue that satisfies both
// TaskQueueReader and TaskQueueWriter interfaces
type TaskQueue struct {
	mu     sync.Mutex
	jobs   chan Job
	logger *slog.Logger
	closed bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		jobs:   make(chan Job, size),
		logger: logger.With("component", "task_queue"),
	}
}

// Enqueue adds a job to the queue without blocking.
// Returns ErrQueueFull if the buffer is full or ErrQueueClosed after Close.
func (q *TaskQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("job enqueued",
			"task_id", job.ID(),
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Close closes the task queue, preventing further submission.
// Jobs already queued remain readable.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("task queue closed")
	}
}

// Len returns the number of jobs waiting in the queue.
func (q *TaskQueue) Len() int {
	return len(q.jobs)
}

// GetChannel returns a read-only channel for consuming jobs
func (q *TaskQueue) GetChannel() <-chan Job {
	return q.jobs
}

var (
	_ TaskQueueReader = (*TaskQueue)(nil)
	_ TaskQueueWriter = (*TaskQueue)(nil)
)
