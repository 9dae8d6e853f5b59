package generation

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURL encodes data as a base64 data URL with the given MIME type.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURL reports whether s looks like a data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURL decodes a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}

	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return mimeType, data, nil
}

// StreamPath is the in-service location where a task's binary result is served.
func StreamPath(taskID string) string {
	return "/stream/" + taskID
}
