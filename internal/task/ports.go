package task

import (
	"context"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// Publisher delivers events to the subscribers of a task.
// *broadcast.Hub satisfies it.
type Publisher interface {
	Publish(ctx context.Context, taskID string, msg any) int
}

// ConnectionCounter reports how many push connections are open.
type ConnectionCounter interface {
	ConnectionCount() int
}

// ResultSink stores binary results out of band and returns the URL where
// they can be fetched.
type ResultSink interface {
	Store(ctx context.Context, taskID string, kind domain.MediaKind, mimeType string, data []byte) (string, error)
}
