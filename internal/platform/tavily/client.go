// Package tavily provides the Tavily search API client used as the news
// evidence source.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// rateLimitKey identifies the shared request budget for the Tavily API.
const rateLimitKey = "tavily:search"

// Client is the REST client for the Tavily search API.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	days       int
	limiter    domain.RateLimiter // optional
	httpClient *http.Client
}

var _ domain.NewsSource = (*Client)(nil)

// Config holds the Tavily client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	MaxResults int // results per search, defaults to 5
	Days       int // recency window in days, defaults to 7
}

// NewClient creates a new Tavily API client.
//
// cfg.BaseURL is the API root, e.g. "https://api.tavily.com".
func NewClient(cfg Config) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Days <= 0 {
		cfg.Days = 7
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		days:       cfg.Days,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithLimiter attaches a shared rate limiter consulted before every search,
// keeping concurrent evaluations inside the API quota.
func (c *Client) WithLimiter(l domain.RateLimiter) *Client {
	c.limiter = l
	return c
}

// searchRequest is the Tavily /search request payload.
type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	Topic       string `json:"topic"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
	Days        int    `json:"days"`
}

// searchResult is one entry in the Tavily /search response.
type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Search runs a news search and maps the results to evidence items. A context
// deadline surfaces as ErrSearchTimeout so callers can degrade to the
// empty-evidence case.
func (c *Client) Search(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rateLimitKey); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("tavily: rate limit wait: %w", domain.ErrSearchTimeout)
			}
			return nil, fmt.Errorf("tavily: rate limit wait: %w", err)
		}
	}

	payload := searchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		Topic:       "news",
		SearchDepth: "basic",
		MaxResults:  c.maxResults,
		Days:        c.days,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tavily: search: %w", domain.ErrSearchTimeout)
		}
		return nil, fmt.Errorf("tavily: search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tavily: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("tavily: %w: %s", domain.ErrUnauthorized, body)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("tavily: %w: %s", domain.ErrRateLimited, body)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("tavily: HTTP %d: %s", resp.StatusCode, body)
	}

	var decoded struct {
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	items := make([]domain.EvidenceItem, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		items = append(items, r.toEvidenceItem())
	}
	return items, nil
}

// toEvidenceItem maps one search result onto an evidence item. The Tavily
// relevance score is already in [0,1]; a missing published date leaves the
// timestamp zero, which the aggregator treats as full recency weight.
func (r *searchResult) toEvidenceItem() domain.EvidenceItem {
	text := r.Title
	if r.Content != "" {
		if text != "" {
			text += ". "
		}
		text += r.Content
	}

	item := domain.EvidenceItem{
		Text:            text,
		RelevanceWeight: r.Score,
	}
	if r.PublishedDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02", time.RFC1123} {
			if t, err := time.Parse(layout, r.PublishedDate); err == nil {
				item.SourceTimestamp = t
				break
			}
		}
	}
	return item
}
