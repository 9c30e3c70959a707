package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubSearch struct {
	calls   int
	fail    bool
	results map[string]string
}

func (s *stubSearch) Search(_ context.Context, query string) (string, error) {
	s.calls++
	if s.fail {
		return "", fmt.Errorf("search backend unavailable")
	}
	if r, ok := s.results[query]; ok {
		return r, nil
	}
	return "result for " + query, nil
}

func TestResearchCache_CachesRepeatedQueries(t *testing.T) {
	search := &stubSearch{}
	cache := NewResearchCache(8)

	out1 := cache.ResearchPaper(context.Background(), search, "Attention Is All You Need", []string{"benchmarks"})
	require.Contains(t, out1, "## Base research: Attention Is All You Need")
	require.Contains(t, out1, "## Focus: benchmarks")
	require.Equal(t, 2, search.calls)

	_ = cache.ResearchPaper(context.Background(), search, "Attention Is All You Need", []string{"benchmarks"})
	require.Equal(t, 2, search.calls, "second call for the same queries must be served from cache")
}

func TestResearchCache_SearchErrorIsEncodedNotRaised(t *testing.T) {
	search := &stubSearch{fail: true}
	cache := NewResearchCache(8)

	out := cache.ResearchPaper(context.Background(), search, "Some Paper", nil)
	require.Contains(t, out, "SEARCH_ERROR:")
}

func TestWebSearch_Passthrough(t *testing.T) {
	search := &stubSearch{results: map[string]string{"q": "answer"}}
	out := WebSearch(context.Background(), search, "q")
	require.Equal(t, "answer", out)
}

func TestWebSearch_ErrorEncoded(t *testing.T) {
	search := &stubSearch{fail: true}
	out := WebSearch(context.Background(), search, "q")
	require.Contains(t, out, "SEARCH_ERROR:")
}
