package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Search(t *testing.T) {
	expected := Response{
		Success: true,
		Results: []models.Result{{
			ID:    "r1",
			Title: "Go 1.24 released",
			URL:   "https://go.dev/blog",
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golang release", req.Query)
		assert.Equal(t, 5, req.Limit)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expected)
	}))
	defer server.Close()

	p := NewHTTPProvider("upstream", server.URL, "test-key", 5*time.Second, logrus.New())

	resp, err := p.Search(context.Background(), "golang release", Options{Limit: 5})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "r1", resp.Results[0].ID)
}

func TestHTTPProvider_SearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	p := NewHTTPProvider("upstream", server.URL, "test-key", 5*time.Second, logrus.New())

	_, err := p.Search(context.Background(), "anything", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPProvider_SearchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p := NewHTTPProvider("upstream", server.URL, "test-key", 5*time.Second, logrus.New())

	_, err := p.Search(context.Background(), "anything", Options{Timeout: 20 * time.Millisecond})
	assert.Error(t, err)
}

func TestHTTPProvider_NotConfigured(t *testing.T) {
	p := NewHTTPProvider("upstream", "", "", 5*time.Second, logrus.New())

	_, err := p.Search(context.Background(), "anything", Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = p.HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTTPProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewHTTPProvider("upstream", server.URL, "test-key", 5*time.Second, logrus.New())
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()

	resp, err := p.Search(context.Background(), "golang", Options{Limit: 2})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Results, 2)
	assert.NoError(t, p.HealthCheck(context.Background()))
}
