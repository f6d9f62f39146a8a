package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/cache"
	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/Ayash-Bera/calypso/backend/internal/orchestrator"
	"github.com/Ayash-Bera/calypso/backend/internal/provider"
	"github.com/Ayash-Bera/calypso/backend/internal/ratelimit"
	"github.com/Ayash-Bera/calypso/backend/internal/services"
	"github.com/Ayash-Bera/calypso/backend/internal/stats"
	"github.com/Ayash-Bera/calypso/backend/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	results []models.Result
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(_ context.Context, _ string, _ provider.Options) (*provider.Response, error) {
	return &provider.Response{Success: true, Results: p.results}, nil
}

func (p *fakeProvider) HealthCheck(_ context.Context) error { return nil }

func newTestRouter(t *testing.T, quota int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	limiter := ratelimit.New(quota, 10*time.Minute, logger)
	queryCache := cache.New(5*time.Minute, 100, logger)
	tracker := stats.NewTracker()

	orch := orchestrator.New(logger)
	orch.Register(&fakeProvider{results: []models.Result{{ID: "r1", Title: "Go"}}}, 1, nil, time.Second)

	broker, err := stream.NewBroker(stream.Config{Stagger: time.Millisecond, Grace: time.Minute, Workers: 4}, logger)
	require.NoError(t, err)

	svc := services.NewSearchService(limiter, queryCache, orch, broker, tracker, logger)
	t.Cleanup(svc.Shutdown)

	searchHandler := NewSearchHandler(svc, broker, logger)
	statusHandler := NewStatusHandler(orch, tracker, logger)

	router := gin.New()
	router.POST("/search", searchHandler.HandleSearch)
	router.GET("/search/stream", searchHandler.HandleStreamSearch)
	router.GET("/health", statusHandler.HandleHealth)
	router.GET("/stats", statusHandler.HandleStats)

	return router
}

func doSearch(t *testing.T, router *gin.Engine, body any) (*httptest.ResponseRecorder, models.Envelope) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHandleSearch_WebSearch(t *testing.T) {
	router := newTestRouter(t, 100)

	w, envelope := doSearch(t, router, models.SearchRequest{Query: "golang news", ClientID: "c1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
	assert.Equal(t, "web_search", envelope.Action)
	assert.NotEmpty(t, envelope.Timestamp)

	result := envelope.Result.(map[string]any)
	assert.Equal(t, "live", result["source"])
	assert.Equal(t, float64(1), result["count"])
	rl := result["rateLimit"].(map[string]any)
	assert.Equal(t, true, rl["allowed"])
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	router := newTestRouter(t, 100)

	w, envelope := doSearch(t, router, map[string]any{"clientId": "c1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Error, "query cannot be empty")
}

func TestHandleSearch_UnknownAction(t *testing.T) {
	router := newTestRouter(t, 100)

	w, envelope := doSearch(t, router, models.SearchRequest{Query: "q", Action: "explode"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Error, "unknown action")
}

func TestHandleSearch_RateLimited(t *testing.T) {
	router := newTestRouter(t, 1)

	_, _ = doSearch(t, router, models.SearchRequest{Query: "q", ClientID: "c1"})
	w, envelope := doSearch(t, router, models.SearchRequest{Query: "q", ClientID: "c1"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, envelope.Success)

	result := envelope.Result.(map[string]any)
	rl := result["rateLimit"].(map[string]any)
	assert.Equal(t, false, rl["allowed"])
	assert.Equal(t, float64(0), rl["remaining"])
	assert.NotEmpty(t, rl["resetAt"])
}

func TestHandleSearch_CacheStatus(t *testing.T) {
	router := newTestRouter(t, 100)

	_, _ = doSearch(t, router, models.SearchRequest{Query: "golang news", ClientID: "c1"})

	// cache_status is the one action that needs no query.
	w, envelope := doSearch(t, router, map[string]any{"action": "cache_status", "clientId": "c1"})

	assert.Equal(t, http.StatusOK, w.Code)
	result := envelope.Result.(map[string]any)
	cacheInfo := result["cache"].(map[string]any)
	assert.Equal(t, float64(1), cacheInfo["entries"])
}

// closeNotifyRecorder adds the http.CloseNotifier implementation that
// gin's Context.Stream requires and httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestHandleStreamSearch_SSE(t *testing.T) {
	router := newTestRouter(t, 100)

	req := httptest.NewRequest("GET", "/search/stream?query=golang+news&clientId=c1", nil)
	w := newCloseNotifyRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event:metadata")
	assert.Contains(t, body, "event:result")
	assert.Contains(t, body, "event:complete")

	// Events arrive in protocol order.
	assert.Less(t, strings.Index(body, "event:metadata"), strings.Index(body, "event:result"))
	assert.Less(t, strings.Index(body, "event:result"), strings.Index(body, "event:complete"))
}

func TestHandleStreamSearch_MissingQuery(t *testing.T) {
	router := newTestRouter(t, 100)

	req := httptest.NewRequest("GET", "/search/stream", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t, 100)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body["providers"], "fake")
}

func TestHandleStats(t *testing.T) {
	router := newTestRouter(t, 100)

	_, _ = doSearch(t, router, models.SearchRequest{Query: "golang news", ClientID: "c1"})

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	statsObj := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), statsObj["totalSearches"])
}
