// Package websearch implements domain.WebSearcher over the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/metrics"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 5
	provider          = "tavily"
	maxErrorBody      = 4 << 10
)

// Config holds the Tavily client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string // "basic" or "advanced"
	Timeout     time.Duration
	Logger      *zap.Logger
}

// Client runs web searches against Tavily.
type Client struct {
	apiKey      string
	baseURL     string
	maxResults  int
	searchDepth string
	http        *http.Client
	logger      *zap.Logger
}

type searchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Answer  string         `json:"answer"`
	Results []searchResult `json:"results"`
}

// NewClient creates a Tavily client.
func NewClient(cfg *Config) *Client {
	c := &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxResults:  cfg.MaxResults,
		searchDepth: cfg.SearchDepth,
		http:        &http.Client{Timeout: cfg.Timeout},
		logger:      cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.maxResults <= 0 {
		c.maxResults = defaultMaxResults
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Search implements domain.WebSearcher. The result is Tavily's short answer (if any)
// followed by one block per hit.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	start := time.Now()

	resp, err := c.do(ctx, query)

	metrics.SearchRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(provider, "error").Inc()
		return "", err
	}
	metrics.SearchRequestsTotal.WithLabelValues(provider, "success").Inc()

	c.logger.Debug("Web search completed",
		zap.Int("results", len(resp.Results)),
		zap.Bool("has_answer", resp.Answer != ""),
	)
	return format(resp.Answer, resp.Results), nil
}

func (c *Client) do(ctx context.Context, query string) (*searchResponse, error) {
	body, err := json.Marshal(searchRequest{
		Query:         query,
		MaxResults:    c.maxResults,
		SearchDepth:   c.searchDepth,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search request: %w", err)
		}
		return nil, fmt.Errorf("search request failed: %w: %w", domain.ErrFallbackUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		kind := domain.ErrFallbackUnavailable
		if httpResp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("tavily API error %d: %s: %w",
				httpResp.StatusCode, strings.TrimSpace(string(msg)), errors.Join(kind, domain.ErrRateLimited))
		}
		return nil, fmt.Errorf("tavily API error %d: %s: %w",
			httpResp.StatusCode, strings.TrimSpace(string(msg)), kind)
	}

	var out searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w: %w", domain.ErrFallbackUnavailable, err)
	}
	return &out, nil
}

// format renders a search response as plain text.
func format(answer string, results []searchResult) string {
	var b strings.Builder
	if answer = strings.TrimSpace(answer); answer != "" {
		b.WriteString(answer)
	}
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case r.Title != "" && r.URL != "":
			fmt.Fprintf(&b, "%s (%s)\n", r.Title, r.URL)
		case r.URL != "":
			b.WriteString(r.URL + "\n")
		}
		b.WriteString(content)
	}
	return b.String()
}

// HealthCheck reports whether the client is configured. Tavily has no free probe endpoint.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.apiKey == "" {
		return errors.New("tavily API key is not set")
	}
	return nil
}
