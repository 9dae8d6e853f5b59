package task

import (
	"context"
)

// Job is a unit of background work to be processed by the worker pool.
type Job interface {
	// ID returns the identifier of the task the job works on
	ID() string

	// Execute runs the job logic
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the job channel
// allowing workers to consume jobs without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming jobs
	GetChannel() <-chan Job
}

// TaskQueueWriter provides write access to the task queue
// allowing the dispatcher to enqueue jobs for processing
type TaskQueueWriter interface {
	// Enqueue adds a job to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(job Job) error

	// Close closes the task queue, preventing further submission
	Close()

	// Len reports how many jobs are waiting to be picked up
	Len() int
}
