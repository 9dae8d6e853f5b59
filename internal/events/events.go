package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// EventType identifies a task lifecycle transition.
type EventType string

// Lifecycle event types
const (
	TaskCreated   EventType = "task.created"
	TaskCompleted EventType = "task.completed"
	TaskFailed    EventType = "task.failed"
)

// TaskEvent records a task lifecycle transition.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the transition that occurred
	Type EventType `json:"type"`

	// Task is the task snapshot taken right after the transition
	Task domain.Task `json:"task"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates a TaskEvent for the given transition.
func NewTaskEvent(eventType EventType, task domain.Task) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Task:       task,
		OccurredAt: time.Now(),
	}
}

// IsTerminal reports whether the event ends the task's lifecycle.
func (e *TaskEvent) IsTerminal() bool {
	return e.Type == TaskCompleted || e.Type == TaskFailed
}

// Duration is the time from task creation to the event.
func (e *TaskEvent) Duration() time.Duration {
	if e.Task.CompletedAt != nil {
		return e.Task.CompletedAt.Sub(e.Task.CreatedAt)
	}
	return e.OccurredAt.Sub(e.Task.CreatedAt)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
