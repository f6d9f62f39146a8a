package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ayash-Bera/calypso/backend/internal/cache"
	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/Ayash-Bera/calypso/backend/internal/orchestrator"
	"github.com/Ayash-Bera/calypso/backend/internal/ratelimit"
	"github.com/Ayash-Bera/calypso/backend/internal/semantic"
	"github.com/Ayash-Bera/calypso/backend/internal/stats"
	"github.com/Ayash-Bera/calypso/backend/internal/stream"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Action is the closed set of search operations. Unknown action
// strings fail ParseAction; dispatch is exhaustive over this type.
type Action string

const (
	ActionWebSearch      Action = "web_search"
	ActionSemanticSearch Action = "semantic_search"
	ActionGetCached      Action = "get_cached_results"
	ActionCacheStatus    Action = "cache_status"
)

// ErrInvalidInput covers missing/malformed queries and unknown actions.
var ErrInvalidInput = errors.New("invalid input")

// ParseAction maps the free-form action field to the closed enum.
// Empty means web_search.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case "", ActionWebSearch:
		return ActionWebSearch, nil
	case ActionSemanticSearch:
		return ActionSemanticSearch, nil
	case ActionGetCached:
		return ActionGetCached, nil
	case ActionCacheStatus:
		return ActionCacheStatus, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
	}
}

// RateLimitError carries the denial decision to the transport layer.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

// Request is one mediated search invocation.
type Request struct {
	Query    string
	Action   Action
	ClientID string
	Limit    int
}

// CacheStatusPayload is the result of the cache_status action.
type CacheStatusPayload struct {
	Cache     cache.Status         `json:"cache"`
	RateLimit models.RateLimitInfo `json:"rateLimit"`
}

// SearchService mediates client searches: admission, semantic
// analysis, cache, provider orchestration, and stats in one flow.
type SearchService struct {
	limiter      *ratelimit.Limiter
	cache        *cache.Cache
	orch         *orchestrator.Orchestrator
	broker       *stream.Broker
	tracker      *stats.Tracker
	logger       *logrus.Logger
	flight       singleflight.Group
	defaultLimit int
}

func NewSearchService(
	limiter *ratelimit.Limiter,
	queryCache *cache.Cache,
	orch *orchestrator.Orchestrator,
	broker *stream.Broker,
	tracker *stats.Tracker,
	logger *logrus.Logger,
) *SearchService {
	return &SearchService{
		limiter:      limiter,
		cache:        queryCache,
		orch:         orch,
		broker:       broker,
		tracker:      tracker,
		logger:       logger,
		defaultLimit: 10,
	}
}

// Execute runs one non-streaming action. Rate-limit denials surface as
// *RateLimitError; bad input as ErrInvalidInput. Provider failures do
// not return an error — they come back as a payload with source=error.
func (s *SearchService) Execute(ctx context.Context, req Request) (any, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" && req.Action != ActionCacheStatus {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}

	decision := s.limiter.Admit(req.ClientID)
	if !decision.Allowed {
		s.tracker.RecordRateLimited()
		return nil, &RateLimitError{Decision: decision}
	}
	limitInfo := models.RateLimitInfo(decision)

	switch req.Action {
	case ActionWebSearch:
		return s.webSearch(ctx, query, req.ClientID, s.limit(req.Limit), limitInfo), nil
	case ActionSemanticSearch:
		return s.semanticSearch(query, s.limit(req.Limit), limitInfo), nil
	case ActionGetCached:
		return s.getCached(query, limitInfo), nil
	case ActionCacheStatus:
		return CacheStatusPayload{Cache: s.cache.Status(), RateLimit: limitInfo}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, req.Action)
	}
}

// StreamSearch admits the client, opens a stream session, and kicks
// off delivery. Chunks arrive via broker subscription; the caller's
// ctx cancels pending work on disconnect.
func (s *SearchService) StreamSearch(ctx context.Context, clientID, query string, limit int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}

	decision := s.limiter.Admit(clientID)
	if !decision.Allowed {
		s.tracker.RecordRateLimited()
		return "", &RateLimitError{Decision: decision}
	}

	streamID := s.broker.CreateStream(clientID, query)

	go func() {
		results, outcome := s.resolve(ctx, query, clientID, s.limit(limit))
		if outcome != nil && !outcome.Success {
			s.broker.Fail(streamID, outcome.Error)
			return
		}
		if err := s.broker.Deliver(ctx, streamID, results); err != nil {
			s.logger.WithError(err).WithField("stream_id", streamID).Error("Failed to schedule stream delivery")
			s.broker.Fail(streamID, "stream delivery unavailable")
		}
	}()

	return streamID, nil
}

func (s *SearchService) webSearch(ctx context.Context, query, clientID string, limit int, limitInfo models.RateLimitInfo) models.SearchPayload {
	results, outcome := s.resolve(ctx, query, clientID, limit)

	payload := models.SearchPayload{
		Query:     query,
		Results:   results,
		Count:     len(results),
		RateLimit: limitInfo,
	}

	switch {
	case outcome == nil:
		payload.Source = models.SourceCache
	case outcome.Success:
		payload.Source = models.SourceLive
	default:
		payload.Source = models.SourceError
		payload.Error = outcome.Error
		payload.Results = []models.Result{}
		payload.Count = 0
	}

	return payload
}

// resolve serves a query from cache when fresh, otherwise runs one
// orchestrated live search. A nil outcome means a cache hit.
// Concurrent misses for the same normalized key collapse into a single
// provider call.
func (s *SearchService) resolve(ctx context.Context, query, clientID string, limit int) ([]models.Result, *orchestrator.Outcome) {
	key := cache.Normalize(query)

	if entry, ok := s.cache.Lookup(key); ok {
		s.tracker.RecordCacheHit()
		s.logger.WithField("key", key).Debug("Search served from cache")
		return entry.Results, nil
	}
	s.tracker.RecordCacheMiss()

	v, _, _ := s.flight.Do(key, func() (interface{}, error) {
		outcome := s.orch.ExecuteSearch(ctx, query, orchestrator.Options{Limit: limit})
		s.tracker.Record(query, outcome.Success, outcome.Duration, outcome.Provider)

		if outcome.Success {
			tag := semantic.Analyze(query)
			s.cache.Store(key, query, outcome.Results, tag, clientID)
		}

		s.logger.WithFields(logrus.Fields{
			"query":    query,
			"provider": outcome.Provider,
			"failover": outcome.Failover,
			"success":  outcome.Success,
			"duration": outcome.Duration,
		}).Info("Live search completed")

		return outcome, nil
	})

	outcome := v.(orchestrator.Outcome)
	return outcome.Results, &outcome
}

// semanticSearch returns cached results whose stored keywords overlap
// the query's keywords.
func (s *SearchService) semanticSearch(query string, limit int, limitInfo models.RateLimitInfo) models.SearchPayload {
	tag := semantic.Analyze(query)
	keys := s.cache.RelatedKeys(tag.Keywords)

	seen := make(map[string]bool)
	results := make([]models.Result, 0)

	for _, key := range keys {
		entry, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		for _, r := range entry.Results {
			if len(results) >= limit {
				break
			}
			if r.ID != "" && seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			results = append(results, r)
		}
	}

	return models.SearchPayload{
		Query:     query,
		Results:   results,
		Source:    models.SourceCache,
		Count:     len(results),
		RateLimit: limitInfo,
	}
}

// getCached returns the stored entry for the query, counting the read
// against the entry's hit count. A missing entry is not an error.
func (s *SearchService) getCached(query string, limitInfo models.RateLimitInfo) models.SearchPayload {
	key := cache.Normalize(query)

	payload := models.SearchPayload{
		Query:     query,
		Results:   []models.Result{},
		Source:    models.SourceCache,
		RateLimit: limitInfo,
	}

	if entry, ok := s.cache.Cached(key); ok {
		payload.Results = entry.Results
		payload.Count = len(entry.Results)
	}

	return payload
}

func (s *SearchService) limit(requested int) int {
	if requested <= 0 {
		return s.defaultLimit
	}
	if requested > 50 {
		return 50
	}
	return requested
}

// Shutdown releases owned background resources.
func (s *SearchService) Shutdown() {
	s.broker.Shutdown()
	s.limiter.Close()
}
