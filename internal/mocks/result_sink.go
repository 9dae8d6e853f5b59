package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// Upload records one call to MockResultSink.Store.
type Upload struct {
	TaskID   string
	Kind     domain.MediaKind
	MimeType string
	Data     []byte
}

// MockResultSink stores uploads in memory and returns URLs under BaseURL.
type MockResultSink struct {
	BaseURL string
	Err     error

	mu      sync.Mutex
	uploads []Upload
}

// Store records the upload, or returns Err when set.
func (m *MockResultSink) Store(_ context.Context, taskID string, kind domain.MediaKind, mimeType string, data []byte) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, Upload{TaskID: taskID, Kind: kind, MimeType: mimeType, Data: data})
	return fmt.Sprintf("%s/%s/%s", m.BaseURL, kind, taskID), nil
}

// Uploads returns every successful upload so far.
func (m *MockResultSink) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}

// Stored returns the data uploaded for taskID, or nil.
func (m *MockResultSink) Stored(taskID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.uploads {
		if u.TaskID == taskID {
			return u.Data
		}
	}
	return nil
}
