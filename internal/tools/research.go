package tools

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"paperpost-orchestrator/internal/domain/ports"
)

// ResearchCache memoizes web_search results within and across a process's
// research_paper calls, grounded on the teacher's direct dependency on
// hashicorp/golang-lru/v2 (otherwise unused in this pack).
type ResearchCache struct {
	cache *lru.Cache[string, string]
}

// NewResearchCache builds a bounded LRU cache of size entries.
func NewResearchCache(size int) *ResearchCache {
	c, _ := lru.New[string, string](size) // a non-positive size is the only failure mode
	return &ResearchCache{cache: c}
}

func (r *ResearchCache) getOrSearch(ctx context.Context, search ports.SearchClient, query string) string {
	if cached, ok := r.cache.Get(query); ok {
		return cached
	}
	result, err := search.Search(ctx, query)
	if err != nil {
		// spec §4.4: tool errors never raise; encode as a string so the
		// LLM can react (spec scenario 3, "SEARCH_ERROR: unavailable").
		result = fmt.Sprintf("SEARCH_ERROR: %v", err)
	}
	r.cache.Add(query, result)
	return result
}

// ResearchPaper combines web-search results for the base query and each
// focus area into one labelled string (spec §4.5).
func (r *ResearchCache) ResearchPaper(ctx context.Context, search ports.SearchClient, title string, focusAreas []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Base research: %s\n%s\n", title, r.getOrSearch(ctx, search, title))
	for _, area := range focusAreas {
		query := fmt.Sprintf("%s %s", title, area)
		fmt.Fprintf(&sb, "\n## Focus: %s\n%s\n", area, r.getOrSearch(ctx, search, query))
	}
	return sb.String()
}

// WebSearch delegates directly to the Web Search provider (spec §4.5).
func WebSearch(ctx context.Context, search ports.SearchClient, query string) string {
	result, err := search.Search(ctx, query)
	if err != nil {
		return fmt.Sprintf("SEARCH_ERROR: %v", err)
	}
	return result
}
