package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool manages a pool of worker goroutines that process jobs
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// taskQueue provides read access to the jobs to be processed
	taskQueue TaskQueueReader

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is passed to every job and cancelled by Stop
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when a job execution fails
	// If nil, errors are only logged
	errorHandler func(job Job, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With("component", "worker_pool"),
	}
}

// SetErrorHandler allows setting a custom error handler for job execution failures
func (p *WorkerPool) SetErrorHandler(handler func(job Job, err error)) {
	p.errorHandler = handler
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels the pool context and waits for all workers to exit. Jobs
// still queued are executed with the cancelled context so they can finish
// their bookkeeping quickly.
func (p *WorkerPool) Stop() {
	p.logger.Info("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	jobs := p.taskQueue.GetChannel()

	for {
		select {
		case <-p.ctx.Done():
			p.drain(jobs, id)
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case job, ok := <-jobs:
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.processJob(job, id)
		}
	}
}

// drain runs any jobs left in the queue without blocking for new ones.
func (p *WorkerPool) drain(jobs <-chan Job, workerID int) {
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			p.processJob(job, workerID)
		default:
			return
		}
	}
}

func (p *WorkerPool) processJob(job Job, workerID int) {
	logger := p.logger.With("task_id", job.ID(), "worker_id", workerID)

	err := p.execute(job)
	if err == nil {
		logger.Debug("job finished")
		return
	}

	logger.Debug("job finished with error", "error", err)
	if p.errorHandler != nil {
		p.errorHandler(job, err)
	}
}

// execute runs job, converting a panic into an error.
func (p *WorkerPool) execute(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.Execute(p.ctx)
}
