package task

import "errors"

var (
	// ErrDispatcherStopped is returned by Submit after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrNotRunning is returned by Cancel for tasks that have no running job.
	ErrNotRunning = errors.New("task is not running")
)

// Failure messages recorded on tasks that did not finish on their own.
const (
	FailureCancelled = "cancelled"
	FailureTimedOut  = "timed out"
	FailureShutdown  = "dispatcher shutting down"
)
