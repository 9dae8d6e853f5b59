package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/omnimedia-api/internal/store"
)

// taskIDParam is the route parameter holding a task id.
const taskIDParam = "id"

// getTaskID extracts the task id from the URL path. Missing ids are
// reported as not found, matching unknown ids.
func getTaskID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, taskIDParam))
	if id == "" {
		return "", store.ErrTaskNotFound
	}
	return id, nil
}
