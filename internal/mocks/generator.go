package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/studycycle-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to replace the default behavior
	GenerateFn func(ctx context.Context, req generation.Request) ([]generation.Item, error)

	// Default response values
	Items []generation.Item
	Err   error

	// Call tracking for verification
	Calls struct {
		mu       sync.Mutex
		Count    int
		Requests []generation.Request
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// GenerateReviewItems implements generation.Generator
func (m *MockGenerator) GenerateReviewItems(ctx context.Context, req generation.Request) ([]generation.Item, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Requests = append(m.Calls.Requests, req)
	m.Calls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return m.Items, m.Err
}

// CallCount returns the number of GenerateReviewItems calls.
func (m *MockGenerator) CallCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}
