package models

import "time"

// SearchRequest is the client-facing body of POST /search. Query
// presence is validated by the service, which allows it to be absent
// for cache_status.
type SearchRequest struct {
	Query    string `json:"query"`
	Action   string `json:"action,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// RateLimitInfo mirrors the limiter decision in responses.
type RateLimitInfo struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// SearchPayload is the result object inside a search response.
type SearchPayload struct {
	Query     string        `json:"query"`
	Results   []Result      `json:"results"`
	Source    Source        `json:"source"`
	Count     int           `json:"count"`
	Error     string        `json:"error,omitempty"`
	RateLimit RateLimitInfo `json:"rateLimit"`
}

// Envelope wraps every /search response.
type Envelope struct {
	Success   bool   `json:"success"`
	Action    string `json:"action"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}
