package task

import (
	"context"
	"sync"
)

// Handle lets a submitter follow or cancel a submitted task.
type Handle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

func newHandle(id string) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the task id.
func (h *Handle) ID() string {
	return h.id
}

// Done is closed once the task has reached a terminal status.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel stops the task's generator. The task fails with "cancelled"
// unless it already finished. Calling Cancel more than once is harmless.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() {
		close(h.done)
		h.cancel()
	})
}
