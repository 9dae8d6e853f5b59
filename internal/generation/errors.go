package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a provider fails for any general reason
	ErrGenerationFailed = errors.New("media generation failed")

	// ErrInvalidResponse is returned when a provider response is empty or malformed
	ErrInvalidResponse = errors.New("invalid response from generation provider")

	// ErrContentBlocked is returned when the provider blocks the prompt due to safety filters
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrTransientFailure is returned for temporary provider errors
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrIncompleteGeneration is returned when a generator finishes without
	// reporting a final stage
	ErrIncompleteGeneration = errors.New("generator finished without a final result")

	// ErrNoGenerator is returned when no generator is registered for a media kind
	ErrNoGenerator = errors.New("no generator registered for media kind")

	// ErrInvalidDataURL is returned when a result is not a base64 data URL
	ErrInvalidDataURL = errors.New("invalid data URL")
)
