package provider

import (
	"context"
	"errors"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
)

// ErrNotConfigured marks a provider missing credentials. It is
// eligible for failover like any transport error.
var ErrNotConfigured = errors.New("provider not configured")

// Status is the last observed health of a provider.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Health is the recorded outcome of a health probe.
type Health struct {
	Status    Status    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
	LastError string    `json:"lastError,omitempty"`
}

// Options configures a single search call.
type Options struct {
	Limit   int
	Timeout time.Duration
}

// Response is the minimal contract any upstream provider must honor.
type Response struct {
	Success bool            `json:"success"`
	Results []models.Result `json:"results"`
	Answer  string          `json:"answer,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Provider is an upstream search backend. Both methods must honor the
// caller-supplied context deadline.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) (*Response, error)
	HealthCheck(ctx context.Context) error
}
