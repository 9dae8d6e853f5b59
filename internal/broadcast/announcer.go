package broadcast

import (
	"context"
	"log/slog"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/events"
)

// Announcer tells every connected client when a task is created or
// finishes. Announcements carry the task's kind and status only; progress
// and results go to the task's subscribers.
type Announcer struct {
	hub    *Hub
	logger *slog.Logger
}

// NewAnnouncer creates an Announcer publishing through hub.
func NewAnnouncer(hub *Hub, logger *slog.Logger) *Announcer {
	return &Announcer{
		hub:    hub,
		logger: logger.With("component", "task_announcer"),
	}
}

// HandleEvent implements events.EventHandler.
func (a *Announcer) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	eventType := domain.EventTaskFinished
	if event.Type == events.TaskCreated {
		eventType = domain.EventTaskCreated
	}

	delivered := a.hub.PublishAll(ctx, domain.Event{
		TaskID: event.Task.ID,
		Type:   eventType,
		Data: domain.StatusData{
			MediaKind: event.Task.MediaKind,
			Status:    event.Task.Status,
		},
	})
	a.logger.Debug("task announced",
		"task_id", event.Task.ID,
		"event_type", eventType,
		"delivered", delivered)
	return nil
}

var _ events.EventHandler = (*Announcer)(nil)
