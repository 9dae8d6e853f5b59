package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a request or entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedKind is returned for a media kind outside the supported set.
	ErrUnsupportedKind = fmt.Errorf("%w: unsupported media kind", ErrValidation)

	// ErrEmptyPrompt is returned when a task is requested without a prompt.
	ErrEmptyPrompt = fmt.Errorf("%w: prompt cannot be empty", ErrValidation)

	// ErrInvalidStatus is returned when a task status is not valid.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrTaskTerminal is returned when a change is attempted on a task that
	// has already completed or failed.
	ErrTaskTerminal = errors.New("task is in a terminal state")

	// ErrInvalidProgress is returned for progress values outside 0..100.
	ErrInvalidProgress = errors.New("progress out of range")

	// ErrProgressRegression is returned when a stage reports less progress
	// than the task has already recorded.
	ErrProgressRegression = errors.New("progress cannot decrease")

	// ErrMissingResult is returned when a final stage carries no result.
	ErrMissingResult = errors.New("final stage must carry a result")
)
