// Package search adapts an external Web Search provider to the
// ports.SearchClient capability (spec §1). Two backends are composed: a
// JSON search API (primary) and an HTML scraping fallback built on
// PuerkitoBio/goquery (a direct teacher dependency otherwise unused in this
// pack), engaged when the API key is absent or the API call fails.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"paperpost-orchestrator/internal/domain/ports"
	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/logging"
)

// apiRetryConfig retries a transient searchAPI failure (network error, 5xx,
// 429) twice before the caller falls back to HTML scraping, grounded on the
// teacher's internal/errors.RetryWithLog -- unlike the LLM client, search
// has no circuit breaker of its own, so a short hand-rolled backoff is
// enough rather than composing in cenkalti/backoff/v5 a second time.
var apiRetryConfig = alexerrors.RetryConfig{
	MaxAttempts:  2,
	BaseDelay:    200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	JitterFactor: 0.25,
}

// Config configures the search adapter (spec §6 env var SEARCH_API_KEY).
type Config struct {
	APIBaseURL string
	APIKey     string
	// HTMLFallbackURL, when set, is queried via "?q=" and scraped with
	// goquery when the API is unavailable or unconfigured.
	HTMLFallbackURL string
	Timeout         time.Duration
}

// Client implements ports.SearchClient.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     logging.Logger
}

// New builds a search adapter from cfg.
func New(cfg Config, logger logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

var _ ports.SearchClient = (*Client)(nil)

// Healthy reports whether at least one backend (API or HTML fallback) has
// an endpoint configured to call. Used by the /health endpoint's
// services.search flag; it is not a liveness probe, just a configuration
// check, since search.Client carries no circuit breaker of its own.
func (c *Client) Healthy() bool {
	return c.cfg.APIBaseURL != "" || c.cfg.HTMLFallbackURL != ""
}

type searchAPIResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Search delegates to the Web Search provider (spec §4.5 web_search tool).
// Tool errors never panic; a provider failure is returned as an error and
// the caller (internal/tools) is responsible for turning that into the
// "SEARCH_ERROR: ..." string the LLM sees, per spec §4.4 ("tools... must
// not raise — errors are encoded as strings inside the tool result").
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if c.cfg.APIKey != "" && c.cfg.APIBaseURL != "" {
		result, err := alexerrors.RetryWithResultAndLog(ctx, apiRetryConfig, func(ctx context.Context) (string, error) {
			return c.searchAPI(ctx, query)
		}, c.logger)
		if err == nil {
			return result, nil
		}
		c.logger.Warn("search API failed, falling back to HTML scrape: %v", err)
	}
	if c.cfg.HTMLFallbackURL != "" {
		return c.searchHTML(ctx, query)
	}
	return "", fmt.Errorf("no search backend configured")
}

func (c *Client) searchAPI(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s?q=%s", c.cfg.APIBaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("search API error %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	var sb strings.Builder
	for i, r := range parsed.Results {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", r.Title, r.Content, r.URL)
	}
	return sb.String(), nil
}

// searchHTML queries a result page and extracts result snippets with
// goquery, for environments without an API key configured.
func (c *Client) searchHTML(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s?q=%s", c.cfg.HTMLFallbackURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("html search request failed: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html search response: %w", err)
	}

	var sb strings.Builder
	count := 0
	doc.Find(".result, .search-result, article").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if count >= 5 {
			return false
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		fmt.Fprintf(&sb, "- %s\n", truncate(text, 400))
		count++
		return true
	})
	if count == 0 {
		return "", fmt.Errorf("no results extracted from html search page")
	}
	return sb.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
