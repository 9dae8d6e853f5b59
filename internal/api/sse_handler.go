package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/omnimedia-api/internal/api/shared"
	"github.com/phrazzld/omnimedia-api/internal/broadcast"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/platform/logger"
)

// Defaults for SSEHandler.
const (
	DefaultSSEBuffer    = 64
	DefaultSSEKeepAlive = 15 * time.Second
)

// SSEHandler streams one task's events as Server-Sent Events. The stream
// ends after the task's terminal event; a task that is already terminal
// gets a single event describing its outcome.
type SSEHandler struct {
	tasks     TaskService
	hub       *broadcast.Hub
	buffer    int
	keepAlive time.Duration
}

// NewSSEHandler creates an SSEHandler with default buffering and keepalive.
func NewSSEHandler(tasks TaskService, hub *broadcast.Hub) *SSEHandler {
	return &SSEHandler{
		tasks:     tasks,
		hub:       hub,
		buffer:    DefaultSSEBuffer,
		keepAlive: DefaultSSEKeepAlive,
	}
}

// ServeHTTP implements http.Handler for GET /api/task/{id}/events.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, err := getTaskID(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// Subscribe before reading the snapshot so no event falls in between.
	conn := broadcast.NewChannelConnection(h.buffer)
	h.hub.Subscribe(conn, id)
	defer func() {
		h.hub.Disconnect(conn)
		_ = conn.Close()
	}()

	snapshot, err := h.tasks.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if snapshot.Status.IsTerminal() {
		h.writeFinal(w, snapshot, log)
		flusher.Flush()
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case data, ok := <-conn.Messages():
			if !ok {
				log.Debug("event stream dropped by hub", "task_id", id)
				return
			}
			env, err := parseEnvelope(data)
			if err != nil || env.TaskID != id {
				continue
			}
			if err := writeSSE(w, string(env.Type), data); err != nil {
				return
			}
			flusher.Flush()
			if env.terminal() {
				return
			}

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeFinal describes a terminal task with the event its subscribers
// received when it finished.
func (h *SSEHandler) writeFinal(w http.ResponseWriter, t domain.Task, log *slog.Logger) {
	event := domain.NewFailureEvent(t)
	if t.Status == domain.TaskStatusCompleted {
		event = domain.Event{
			TaskID: t.ID,
			Type:   domain.EventProgressUpdate,
			Data: domain.Stage{
				Name:      "complete",
				Progress:  t.Progress,
				Result:    t.Result,
				StreamRef: t.StreamRef,
			},
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to encode final event", "task_id", t.ID, "error", err)
		return
	}
	_ = writeSSE(w, string(event.Type), data)
}

// envelope is the part of a pushed event the SSE stream inspects.
type envelope struct {
	TaskID string           `json:"task_id"`
	Type   domain.EventType `json:"type"`
	Data   struct {
		Progress int `json:"progress"`
	} `json:"data"`
}

func (e envelope) terminal() bool {
	switch e.Type {
	case domain.EventTaskFailed:
		return true
	case domain.EventProgressUpdate, domain.EventTextStream:
		return e.Data.Progress == domain.MaxProgress
	default:
		return false
	}
}

func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	err := decodeJSONBytes(data, &env)
	return env, err
}

// writeSSE writes one event frame. data is JSON and never contains raw
// newlines.
func writeSSE(w http.ResponseWriter, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, bytes.TrimSpace(data))
	return err
}

func decodeJSONBytes(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
