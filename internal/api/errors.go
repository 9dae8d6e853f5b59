package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/omnimedia-api/internal/api/shared"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/service/auth"
	"github.com/phrazzld/omnimedia-api/internal/store"
	"github.com/phrazzld/omnimedia-api/internal/task"
)

// errNotReady is returned by the stream endpoint for tasks without a result.
var errNotReady = errors.New("result not ready")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Not found errors
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, generation.ErrNoGenerator):
		return http.StatusBadRequest

	// State conflicts
	case errors.Is(err, task.ErrNotRunning),
		errors.Is(err, errNotReady),
		store.IsDuplicateError(err):
		return http.StatusConflict

	// Capacity errors
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, task.ErrDispatcherStopped):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Validation messages are returned as-is since
// they only describe the caller's own input.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case store.IsDuplicateError(err):
		return "Task already exists"

	case errors.Is(err, domain.ErrValidation):
		return err.Error()

	case errors.Is(err, generation.ErrNoGenerator):
		return "Unsupported media type"

	case errors.Is(err, task.ErrNotRunning):
		return "Task is not running"

	case errors.Is(err, errNotReady):
		return "Result not ready"

	case errors.Is(err, task.ErrQueueFull):
		return "Server is busy, try again later"

	case errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, task.ErrDispatcherStopped):
		return "Server is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. When the
// error maps to a 500, fallback (if non-empty) is sent instead of the
// generic message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
