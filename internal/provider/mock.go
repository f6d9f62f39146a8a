package provider

import (
	"context"
	"fmt"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
)

// MockProvider serves deterministic synthetic results. It backs the
// degraded path when no upstream provider has credentials, so a bare
// deployment still answers instead of crashing.
type MockProvider struct {
	name string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock"}
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Search(_ context.Context, query string, opts Options) (*Response, error) {
	count := opts.Limit
	if count <= 0 || count > 5 {
		count = 3
	}

	results := make([]models.Result, count)
	for i := range results {
		results[i] = models.Result{
			ID:        fmt.Sprintf("mock-%d", i+1),
			Title:     fmt.Sprintf("Mock result %d for %q", i+1, query),
			URL:       fmt.Sprintf("https://example.com/results/%d", i+1),
			Snippet:   fmt.Sprintf("Placeholder content for %q. Configure a search provider for live results.", query),
			Relevance: 1.0 - float64(i)*0.1,
			Domain:    "example.com",
		}
	}

	return &Response{Success: true, Results: results}, nil
}

func (p *MockProvider) HealthCheck(_ context.Context) error { return nil }
