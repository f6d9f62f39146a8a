package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPProvider talks to an upstream search API over JSON/HTTP.
// The upstream is expected to expose POST /search and GET /health.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// NewHTTPProvider creates a provider client. timeout bounds every call
// unless the caller's context is tighter.
func NewHTTPProvider(name, baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *HTTPProvider) Name() string { return p.name }

// Configured reports whether the provider has credentials to call.
func (p *HTTPProvider) Configured() bool {
	return p.apiKey != "" && p.baseURL != ""
}

// Search runs one search call against the upstream.
func (p *HTTPProvider) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	if !p.Configured() {
		return nil, fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var response Response
	if err := p.makeRequest(ctx, http.MethodPost, "/search", searchRequest{Query: query, Limit: opts.Limit}, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// HealthCheck probes the upstream /health endpoint.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	if !p.Configured() {
		return fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	return p.makeRequest(ctx, http.MethodGet, "/health", nil, nil)
}

func (p *HTTPProvider) makeRequest(ctx context.Context, method, endpoint string, payload interface{}, result interface{}) error {
	url := p.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	p.logger.WithFields(logrus.Fields{
		"provider": p.name,
		"method":   method,
		"url":      url,
	}).Debug("Making provider API request")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"provider":      p.name,
		"status_code":   resp.StatusCode,
		"response_size": len(responseBody),
	}).Debug("Provider API response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	if result != nil && len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
