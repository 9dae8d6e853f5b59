package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn, when set, replaces the default behavior
	GenerateFn func(ctx context.Context, req generation.Request, rep generation.Reporter) error

	// Stages are reported in order before Err is returned
	Stages []domain.Stage
	Err    error

	mu       sync.Mutex
	requests []generation.Request
}

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req, rep)
	}

	for _, stage := range m.Stages {
		if err := rep.Report(ctx, stage); err != nil {
			return err
		}
	}
	return m.Err
}

// Requests returns the requests passed to Generate so far.
func (m *MockGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}

// NewMockGeneratorWithResult creates a MockGenerator that completes with result
func NewMockGeneratorWithResult(result string) *MockGenerator {
	return &MockGenerator{
		Stages: []domain.Stage{
			{Name: "working", Progress: 50, Message: "Working"},
			{Name: "complete", Progress: domain.MaxProgress, Result: result},
		},
	}
}

// NewMockGeneratorWithError creates a MockGenerator that reaches progress
// and then fails with err
func NewMockGeneratorWithError(progress int, err error) *MockGenerator {
	return &MockGenerator{
		Stages: []domain.Stage{{Name: "working", Progress: progress}},
		Err:    err,
	}
}

// MockGeneratorThatStalls creates a MockGenerator that returns without
// ever reaching the final stage
func MockGeneratorThatStalls(progress int) *MockGenerator {
	return &MockGenerator{
		Stages: []domain.Stage{{Name: "working", Progress: progress}},
	}
}

var _ generation.Generator = (*MockGenerator)(nil)
