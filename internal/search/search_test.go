package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearch_APISuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(searchAPIResponse{Results: []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		}{
			{Title: "Attention Is All You Need", Content: "transformer architecture", URL: "https://example.com/paper"},
		}})
	}))
	defer server.Close()

	c := New(Config{APIBaseURL: server.URL, APIKey: "secret"}, nil)
	result, err := c.Search(context.Background(), "transformers")
	require.NoError(t, err)
	require.Contains(t, result, "Attention Is All You Need")
}

func TestSearch_APIRetriesTransientThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(searchAPIResponse{})
	}))
	defer server.Close()

	c := New(Config{APIBaseURL: server.URL, APIKey: "secret"}, nil)
	_, err := c.Search(context.Background(), "transformers")
	require.NoError(t, err)
	require.Equal(t, int32(2), attempts.Load())
}

func TestSearch_FallsBackToHTMLWhenAPIFails(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer apiServer.Close()

	htmlServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="result">Scraped insight about transformers</div></body></html>`))
	}))
	defer htmlServer.Close()

	c := New(Config{APIBaseURL: apiServer.URL, APIKey: "secret", HTMLFallbackURL: htmlServer.URL}, nil)
	result, err := c.Search(context.Background(), "transformers")
	require.NoError(t, err)
	require.Contains(t, result, "Scraped insight about transformers")
}

func TestSearch_NoBackendConfigured(t *testing.T) {
	c := New(Config{}, nil)
	_, err := c.Search(context.Background(), "transformers")
	require.Error(t, err)
}

func TestSearch_Healthy(t *testing.T) {
	require.False(t, New(Config{}, nil).Healthy())
	require.True(t, New(Config{APIBaseURL: "https://example.com"}, nil).Healthy())
	require.True(t, New(Config{HTMLFallbackURL: "https://example.com"}, nil).Healthy())
}
