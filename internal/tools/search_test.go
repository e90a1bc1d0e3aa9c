package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F">The Go Programming Language</a></h2>
  <a class="result__snippet">Build simple, secure, scalable systems with Go.</a>
</div>
<div class="result">
  <h2 class="result__title"><a class="result__a" href="https://go.dev/doc/">Documentation</a></h2>
  <a class="result__snippet"></a>
</div>
</body></html>`

func executeSearch(t *testing.T, s *Search, query string) []SearchResult {
	t.Helper()

	raw, err := s.Execute(context.Background(), map[string]any{"query": query}, GuestUserID)
	require.NoError(t, err)

	var results []SearchResult
	require.NoError(t, json.Unmarshal([]byte(raw), &results))
	return results
}

func TestSearchScrape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	s := NewSearch(srv.Client(), nil)
	s.htmlSearchURL = srv.URL

	results := executeSearch(t, s, "golang")
	require.Len(t, results, 2)

	assert.Equal(t, "The Go Programming Language", results[0].Title)
	assert.Equal(t, "https://go.dev/", results[0].URL, "redirect link should be unwrapped")
	assert.Equal(t, "Build simple, secure, scalable systems with Go.", results[0].Snippet)

	assert.Equal(t, "Documentation", results[1].Snippet, "empty snippet falls back to title")
}

func TestSearchInstantAnswerFallback(t *testing.T) {
	t.Parallel()

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer html.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Heading":      "Go (programming language)",
			"AbstractText": "Go is a statically typed language.",
			"AbstractURL":  "https://en.wikipedia.org/wiki/Go",
			"RelatedTopics": []map[string]any{
				{"Text": "Gopher - The Go mascot", "FirstURL": "https://go.dev/blog/gopher"},
			},
		})
	}))
	defer api.Close()

	s := NewSearch(http.DefaultClient, nil)
	s.htmlSearchURL = html.URL
	s.instantAnswerURL = api.URL

	results := executeSearch(t, s, "golang")
	require.Len(t, results, 2)
	assert.Equal(t, "Go (programming language)", results[0].Title)
	assert.Equal(t, "Gopher", results[1].Title, "related topic title cut at dash")
	assert.Equal(t, "https://go.dev/blog/gopher", results[1].URL)
}

func TestSearchSyntheticFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSearch(http.DefaultClient, nil)
	s.htmlSearchURL = srv.URL
	s.instantAnswerURL = srv.URL

	results := executeSearch(t, s, "latest news")
	require.Len(t, results, 1)
	assert.Equal(t, "Web search unavailable", results[0].Title)
	assert.Empty(t, results[0].URL)
	assert.Contains(t, results[0].Snippet, `"latest news"`)
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	s := NewSearch(http.DefaultClient, nil)
	_, err := s.Execute(context.Background(), map[string]any{"query": "  "}, GuestUserID)
	assert.Error(t, err)
}

func TestResolveRedirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		href string
		want string
	}{
		{"uddg redirect", "//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage", "https://example.com/page"},
		{"direct link", "https://example.com/page", "https://example.com/page"},
		{"protocol relative", "//example.com/page", "https://example.com/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resolveRedirect(tt.href))
		})
	}
}
