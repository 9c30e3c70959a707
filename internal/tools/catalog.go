package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/tracing"
)

// Catalog exposes the tool set (spec §4.5) as ports.ToolDefinitions plus a
// Dispatch entry point AgentRuntime calls once per model-emitted tool call.
// The orchestrator never interprets tool output (spec §4.5: "it only knows
// the signatures"); tool-level failures are encoded inside the returned
// string per spec §4.4, and Dispatch returns an error only for malformed
// arguments or an unknown tool name.
type Catalog struct {
	search  ports.SearchClient
	cache   *ResearchCache
	toolSet map[string]ports.ToolDefinition
	tracer  tracing.Tracer
}

// NewCatalog builds the fixed five-tool catalog (spec §4.5 table).
func NewCatalog(search ports.SearchClient, cacheSize int) *Catalog {
	c := &Catalog{search: search, cache: NewResearchCache(cacheSize), tracer: tracing.Noop()}
	c.toolSet = map[string]ports.ToolDefinition{
		"research_paper": {
			Name:        "research_paper",
			Description: "Combines web-search results for the paper title and optional focus areas.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":        map[string]any{"type": "string"},
					"focus_areas":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"title"},
			},
		},
		"web_search": {
			Name:        "web_search",
			Description: "Delegates a single query to the Web Search provider.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		},
		"create_post": {
			Name:        "create_post",
			Description: "Formats a LinkedIn post from content, paper title and key insights.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content":       map[string]any{"type": "string"},
					"paper_title":   map[string]any{"type": "string"},
					"key_insights":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"tone":          map[string]any{"type": "string"},
					"audience":      map[string]any{"type": "string"},
					"max_hashtags":  map[string]any{"type": "integer"},
				},
				"required": []string{"content", "paper_title", "key_insights"},
			},
		},
		"verify_technical": {
			Name:        "verify_technical",
			Description: "Scores a post's technical accuracy against the paper reference.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"post_content":    map[string]any{"type": "string"},
					"paper_reference": map[string]any{"type": "string"},
				},
				"required": []string{"post_content"},
			},
		},
		"check_style": {
			Name:        "check_style",
			Description: "Scores a post's structural LinkedIn readiness.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"post_content": map[string]any{"type": "string"}},
				"required":   []string{"post_content"},
			},
		},
	}
	return c
}

// SetTracer binds a Tracer after construction, mirroring
// agentruntime.Runtime.SetMetrics -- only main.go's production catalog
// needs real spans, so it stays optional rather than a required
// constructor parameter touching every test call site.
func (c *Catalog) SetTracer(t tracing.Tracer) {
	if t != nil {
		c.tracer = t
	}
}

// Definitions returns the subset of the catalog named in names, in the
// order given, matching a role's tool_set (spec §4.4).
func (c *Catalog) Definitions(names ...string) []ports.ToolDefinition {
	out := make([]ports.ToolDefinition, 0, len(names))
	for _, n := range names {
		if d, ok := c.toolSet[n]; ok {
			out = append(out, d)
		}
	}
	return out
}

type researchArgs struct {
	Title      string   `json:"title"`
	FocusAreas []string `json:"focus_areas"`
}

type webSearchArgs struct {
	Query string `json:"query"`
}

type createPostArgs struct {
	Content     string   `json:"content"`
	PaperTitle  string   `json:"paper_title"`
	KeyInsights []string `json:"key_insights"`
	Tone        string   `json:"tone"`
	Audience    string   `json:"audience"`
	MaxHashtags int      `json:"max_hashtags"`
}

type verifyArgs struct {
	PostContent    string `json:"post_content"`
	PaperReference string `json:"paper_reference"`
}

type styleArgs struct {
	PostContent string `json:"post_content"`
}

// Dispatch runs the named tool with raw JSON arguments as emitted by the
// model. It never returns an error for a tool-level failure; malformed
// arguments or an unknown tool name are the only error returns, both of
// which indicate a defect in the calling AgentRuntime rather than normal
// operation.
func (c *Catalog) Dispatch(ctx context.Context, name, argsJSON string) (string, error) {
	switch name {
	case "research_paper":
		var a researchArgs
		if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
			return "", fmt.Errorf("invalid research_paper arguments: %w", err)
		}
		spanCtx, span := c.tracer.StartSearchSpan(ctx, a.Title)
		result := c.cache.ResearchPaper(spanCtx, c.search, a.Title, a.FocusAreas)
		span.End(nil)
		return result, nil

	case "web_search":
		var a webSearchArgs
		if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
			return "", fmt.Errorf("invalid web_search arguments: %w", err)
		}
		spanCtx, span := c.tracer.StartSearchSpan(ctx, a.Query)
		result := WebSearch(spanCtx, c.search, a.Query)
		span.End(nil)
		return result, nil

	case "create_post":
		var a createPostArgs
		if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
			return "", fmt.Errorf("invalid create_post arguments: %w", err)
		}
		return CreatePost(a.Content, a.PaperTitle, a.KeyInsights, a.Tone, a.Audience, a.MaxHashtags), nil

	case "verify_technical":
		var a verifyArgs
		if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
			return "", fmt.Errorf("invalid verify_technical arguments: %w", err)
		}
		return VerifyTechnical(a.PostContent, a.PaperReference), nil

	case "check_style":
		var a styleArgs
		if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
			return "", fmt.Errorf("invalid check_style arguments: %w", err)
		}
		return CheckStyle(a.PostContent), nil

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}
