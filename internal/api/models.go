package api

import (
	"time"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// GenerateRequest defines the payload for starting a generation.
// Field rules are enforced by the dispatcher.
type GenerateRequest struct {
	Prompt    string         `json:"prompt"`
	MediaType string         `json:"media_type"`
	Style     string         `json:"style,omitempty"`
	Quality   string         `json:"quality,omitempty"`
	RealTime  *bool          `json:"real_time,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GenerateResponse is returned once a task has been queued.
type GenerateResponse struct {
	TaskID   string            `json:"task_id"`
	Status   domain.TaskStatus `json:"status"`
	RealTime bool              `json:"real_time"`
}

// CancelResponse is returned when cancellation was requested.
type CancelResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// HealthResponse defines the health check payload.
type HealthResponse struct {
	Status            string    `json:"status"`
	ActiveTasks       int       `json:"active_tasks"`
	TotalTasks        int       `json:"total_tasks"`
	ActiveConnections int       `json:"active_connections"`
	QueuedJobs        int       `json:"queued_jobs"`
	Timestamp         time.Time `json:"timestamp"`
}

// ControlMessage is a client frame on the WebSocket channel.
type ControlMessage struct {
	Action string `json:"action"`
	TaskID string `json:"task_id"`
}

// ErrorData is the payload of an error event pushed over the WebSocket.
type ErrorData struct {
	Message string `json:"message"`
}
