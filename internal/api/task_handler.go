package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/phrazzld/omnimedia-api/internal/api/shared"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/platform/logger"
	"github.com/phrazzld/omnimedia-api/internal/task"
)

// TaskService is the dispatcher surface used by the HTTP handlers.
type TaskService interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*task.Handle, error)
	Status(ctx context.Context, id string) (domain.Task, error)
	Cancel(ctx context.Context, id string) error
	Health(ctx context.Context) (task.Health, error)
}

// TaskHandler serves task submission, status, cancellation, health and
// result streaming.
type TaskHandler struct {
	tasks TaskService
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Generate handles POST /api/generate.
func (h *TaskHandler) Generate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req GenerateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	realTime := true
	if req.RealTime != nil {
		realTime = *req.RealTime
	}

	handle, err := h.tasks.Submit(r.Context(), task.SubmitRequest{
		Prompt:   req.Prompt,
		Kind:     req.MediaType,
		Style:    req.Style,
		Quality:  req.Quality,
		RealTime: realTime,
		Metadata: req.Metadata,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start generation")
		return
	}

	log.Debug("generation accepted", "task_id", handle.ID(), "media_type", req.MediaType)
	shared.RespondWithJSON(w, r, http.StatusAccepted, GenerateResponse{
		TaskID:   handle.ID(),
		Status:   domain.TaskStatusQueued,
		RealTime: realTime,
	})
}

// GetTask handles GET /api/task/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getTaskID(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.tasks.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// CancelTask handles DELETE /api/task/{id}.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := getTaskID(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.tasks.Cancel(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to cancel task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, CancelResponse{TaskID: id, Status: "cancelling"})
}

// Health handles GET /api/health.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.tasks.Health(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "unhealthy", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:            health.Status,
		ActiveTasks:       health.ActiveTasks,
		TotalTasks:        health.TotalTasks,
		ActiveConnections: health.ActiveConnections,
		QueuedJobs:        health.QueuedJobs,
		Timestamp:         health.Timestamp,
	})
}

// Stream handles GET /stream/{id}. Inline data URL results are decoded and
// served with their MIME type; results stored elsewhere are redirected to.
func (h *TaskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := getTaskID(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.tasks.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}
	if t.Status != domain.TaskStatusCompleted {
		HandleAPIError(w, r, errNotReady, "")
		return
	}

	switch {
	case generation.IsDataURL(t.Result):
		mimeType, data, err := generation.ParseDataURL(t.Result)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Stored result is corrupt", err)
			return
		}
		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	case isExternalURL(t.StreamRef):
		http.Redirect(w, r, t.StreamRef, http.StatusFound)

	case isExternalURL(t.Result):
		http.Redirect(w, r, t.Result, http.StatusFound)

	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(t.Result))
	}
}

func isExternalURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
