package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/domain"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tvly-test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Query != "capital of France" || req.MaxResults != 2 || !req.IncludeAnswer {
			t.Errorf("unexpected request body: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchResponse{
			Answer: "Paris.",
			Results: []searchResult{
				{Title: "France", URL: "https://example.org/fr", Content: "Paris is the capital."},
				{Title: "Empty", URL: "https://example.org/empty", Content: " "},
			},
		})
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "tvly-test", BaseURL: server.URL, MaxResults: 2, Logger: zap.NewNop()})

	got, err := c.Search(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := "Paris.\n\nFrance (https://example.org/fr)\nParis is the capital."
	if got != want {
		t.Errorf("Search() = %q, want %q", got, want)
	}
}

func TestClient_SearchErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"unauthorized", http.StatusUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"detail":"nope"}`, tc.status)
			}))
			defer server.Close()

			c := NewClient(&Config{APIKey: "k", BaseURL: server.URL})
			_, err := c.Search(context.Background(), "q")
			if !errors.Is(err, domain.ErrFallbackUnavailable) {
				t.Fatalf("expected ErrFallbackUnavailable, got %v", err)
			}
			if errors.Is(err, domain.ErrRateLimited) != tc.rateLimited {
				t.Errorf("rate limited = %v, want %v", errors.Is(err, domain.ErrRateLimited), tc.rateLimited)
			}
		})
	}
}

func TestClient_SearchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "k", BaseURL: server.URL})
	if _, err := c.Search(context.Background(), "q"); !errors.Is(err, domain.ErrFallbackUnavailable) {
		t.Fatalf("expected ErrFallbackUnavailable, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		results []searchResult
		want    string
	}{
		{"nothing", "", nil, ""},
		{"answer only", " Paris ", nil, "Paris"},
		{"url without title", "", []searchResult{{URL: "https://a", Content: "x"}}, "https://a\nx"},
		{"bare content", "", []searchResult{{Content: "x"}, {Content: "y"}}, "x\n\ny"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := format(tc.answer, tc.results); got != tc.want {
				t.Errorf("format() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClient_HealthCheck(t *testing.T) {
	if err := NewClient(&Config{}).HealthCheck(context.Background()); err == nil {
		t.Error("expected error without API key")
	}
	if err := NewClient(&Config{APIKey: "k"}).HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
