package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/events"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/store"
)

// Defaults applied to submissions that leave style or quality empty.
const (
	DefaultStyle   = "default"
	DefaultQuality = "hd"
)

// Config holds dispatcher settings.
type Config struct {
	// WorkerCount is the number of jobs that may run at once
	WorkerCount int

	// QueueSize bounds the number of submitted jobs waiting for a worker
	QueueSize int

	// GenerationTimeout bounds each job; zero disables the limit
	GenerationTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:       4,
		QueueSize:         100,
		GenerationTimeout: 5 * time.Minute,
	}
}

// Dependencies are the collaborators of a Dispatcher. Store, Registry and
// Publisher are required; the rest are optional.
type Dependencies struct {
	Store       store.TaskStore
	Registry    *generation.Registry
	Publisher   Publisher
	Connections ConnectionCounter
	Emitter     events.EventEmitter
	Sink        ResultSink
}

// SubmitRequest describes a generation request from a caller.
type SubmitRequest struct {
	Prompt   string `validate:"required,max=4000"`
	Kind     string `validate:"required"`
	Style    string `validate:"omitempty,max=64"`
	Quality  string `validate:"omitempty,max=32"`
	RealTime bool
	// Metadata holds extra caller options stored with the task
	Metadata map[string]any
}

// Health summarizes the dispatcher for health checks.
type Health struct {
	Status            string
	ActiveTasks       int
	TotalTasks        int
	ActiveConnections int
	QueuedJobs        int
	Timestamp         time.Time
}

// Dispatcher accepts generation requests, tracks their tasks and runs them
// on a worker pool.
type Dispatcher struct {
	cfg       Config
	store     store.TaskStore
	registry  *generation.Registry
	publisher Publisher
	conns     ConnectionCounter
	emitter   events.EventEmitter
	sink      ResultSink

	queue    TaskQueueWriter
	pool     *WorkerPool
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	handles map[string]*Handle
	stopped bool
}

// NewDispatcher creates a dispatcher. Call Start before submitting work.
func NewDispatcher(cfg Config, deps Dependencies, logger *slog.Logger) (*Dispatcher, error) {
	if deps.Store == nil || deps.Registry == nil || deps.Publisher == nil {
		return nil, errors.New("dispatcher requires a store, a generator registry and a publisher")
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("invalid queue size %d", cfg.QueueSize)
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NopEmitter{}
	}

	logger = logger.With("component", "task_dispatcher")
	queue := NewTaskQueue(cfg.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: cfg.WorkerCount}, logger)

	d := &Dispatcher{
		cfg:       cfg,
		store:     deps.Store,
		registry:  deps.Registry,
		publisher: deps.Publisher,
		conns:     deps.Connections,
		emitter:   deps.Emitter,
		sink:      deps.Sink,
		queue:     queue,
		pool:      pool,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
		handles:   make(map[string]*Handle),
	}
	pool.SetErrorHandler(func(job Job, err error) {
		d.logger.Warn("generation job failed", "task_id", job.ID(), "error", err)
	})
	return d, nil
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	d.pool.Start()
}

// Stop rejects new submissions, cancels running jobs and waits for the
// workers to finish. Tasks that had not completed are marked failed.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.queue.Close()
	d.pool.Stop()
}

// Submit validates req, creates a queued task and schedules its generation.
// It returns as soon as the job is queued. Validation failures wrap
// domain.ErrValidation and create nothing. If the queue cannot take the
// job, the new task is marked failed and ErrQueueFull or ErrQueueClosed
// is returned.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	kind, err := d.validateRequest(req)
	if err != nil {
		return nil, err
	}

	generator, err := d.registry.For(kind)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return nil, ErrDispatcherStopped
	}

	style := defaultString(req.Style, DefaultStyle)
	quality := defaultString(req.Quality, DefaultQuality)

	metadata := maps.Clone(req.Metadata)
	if metadata == nil {
		metadata = make(map[string]any, 3)
	}
	metadata["style"] = style
	metadata["quality"] = quality
	metadata["real_time"] = req.RealTime

	task, err := d.store.Create(ctx, domain.TaskSpec{
		Prompt:    req.Prompt,
		MediaKind: kind,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	handle := newHandle(task.ID)
	job := &generationJob{
		d:         d,
		handle:    handle,
		task:      task,
		generator: generator,
		req: generation.Request{
			TaskID:  task.ID,
			Prompt:  task.Prompt,
			Kind:    kind,
			Style:   style,
			Quality: quality,
		},
	}

	d.track(handle)
	d.emit(ctx, events.TaskCreated, task)

	if err := d.queue.Enqueue(job); err != nil {
		d.untrack(handle)
		storeCtx := context.WithoutCancel(ctx)
		if _, failErr := d.failTask(storeCtx, task.ID, "not scheduled: "+err.Error()); failErr != nil {
			d.logger.Error("failed to mark unscheduled task failed", "task_id", task.ID, "error", failErr)
		}
		handle.finish()
		return nil, err
	}

	d.logger.Info("task submitted",
		"task_id", task.ID,
		"media_type", kind,
		"real_time", req.RealTime)
	return handle, nil
}

// Status returns the current snapshot of a task. Unknown and malformed ids
// return store.ErrTaskNotFound.
func (d *Dispatcher) Status(ctx context.Context, id string) (domain.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Task{}, store.ErrTaskNotFound
	}
	return d.store.Get(ctx, id)
}

// Cancel stops the job running for task id.
// Returns ErrNotRunning if the task exists but has no pending or running job.
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	d.mu.Lock()
	handle, ok := d.handles[id]
	d.mu.Unlock()

	if ok {
		handle.Cancel()
		return nil
	}
	if _, err := d.Status(ctx, id); err != nil {
		return err
	}
	return ErrNotRunning
}

// Health reports task and connection counts.
func (d *Dispatcher) Health(ctx context.Context) (Health, error) {
	counts, err := d.store.Counts(ctx)
	if err != nil {
		return Health{}, fmt.Errorf("failed to count tasks: %w", err)
	}

	health := Health{
		Status:      "healthy",
		ActiveTasks: counts.Active,
		TotalTasks:  counts.Total,
		QueuedJobs:  d.queue.Len(),
		Timestamp:   d.now(),
	}
	if d.conns != nil {
		health.ActiveConnections = d.conns.ConnectionCount()
	}
	return health, nil
}

func (d *Dispatcher) validateRequest(req SubmitRequest) (domain.MediaKind, error) {
	if err := d.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return "", fmt.Errorf("%w: %s", domain.ErrValidation, describeValidationErrors(verrs))
		}
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", domain.ErrEmptyPrompt
	}
	return domain.ParseMediaKind(req.Kind)
}

func (d *Dispatcher) failTask(ctx context.Context, id, reason string) (domain.Task, error) {
	now := d.now()
	task, err := d.store.Update(ctx, id, func(t *domain.Task) error {
		return t.Fail(reason, now)
	})
	if err != nil {
		return task, err
	}
	d.publisher.Publish(ctx, id, domain.NewFailureEvent(task))
	d.emit(ctx, events.TaskFailed, task)
	return task, nil
}

// emit hands a lifecycle event to the observers. Their errors are logged by
// the emitter and do not affect the task.
func (d *Dispatcher) emit(ctx context.Context, eventType events.EventType, task domain.Task) {
	_ = d.emitter.EmitEvent(ctx, events.NewTaskEvent(eventType, task))
}

func (d *Dispatcher) track(h *Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles[h.ID()] = h
}

func (d *Dispatcher) untrack(h *Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handles, h.ID())
}

func describeValidationErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
