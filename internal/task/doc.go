// Package task runs media generation jobs in the background.
//
// The Dispatcher validates submissions, creates queued tasks in the store and
// hands jobs to a bounded TaskQueue consumed by a WorkerPool. While a job's
// generator runs, its reporter is the only writer of the task record: every
// accepted stage is persisted and then published to the task's subscribers.
package task
