package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vibeyhq/vibey/internal/log"
)

const (
	// maxSearchResults caps results handed back to the model per query.
	maxSearchResults = 5

	defaultHTMLSearchURL    = "https://html.duckduckgo.com/html/"
	defaultInstantAnswerURL = "https://api.duckduckgo.com/"

	searchTimeout = 15 * time.Second

	// Some search frontends reject requests without a browser user agent.
	searchUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// SearchResult is one web search hit as presented to the model.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Search performs web searches against DuckDuckGo with a two-stage fallback:
// HTML result scrape, then the instant-answer API, then a synthetic result
// telling the model the live search is unavailable. It never returns an
// error; the model always receives usable context.
type Search struct {
	httpClient       *http.Client
	htmlSearchURL    string
	instantAnswerURL string
	logger           log.Logger
}

// NewSearch creates a web search tool.
func NewSearch(httpClient *http.Client, logger log.Logger) *Search {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: searchTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Search{
		httpClient:       httpClient,
		htmlSearchURL:    defaultHTMLSearchURL,
		instantAnswerURL: defaultInstantAnswerURL,
		logger:           logger,
	}
}

// Execute runs a web search and returns the results as JSON.
func (s *Search) Execute(ctx context.Context, args map[string]any, _ string) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	results := s.run(ctx, query)
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encoding search results: %w", err)
	}
	return string(data), nil
}

func (s *Search) run(ctx context.Context, query string) []SearchResult {
	results, err := s.scrape(ctx, query)
	if err == nil && len(results) > 0 {
		return results
	}
	if err != nil {
		s.logger.Warn("search scrape failed, trying instant answers", "error", err)
	}

	results, err = s.instantAnswers(ctx, query)
	if err == nil && len(results) > 0 {
		return results
	}
	if err != nil {
		s.logger.Warn("instant answer lookup failed", "error", err)
	}

	return []SearchResult{{
		Title: "Web search unavailable",
		Snippet: fmt.Sprintf("The live web search is temporarily unavailable. "+
			"Please answer %q from your training knowledge and note that you cannot verify the latest real-time info.", query),
	}}
}

// scrape fetches the HTML results page and extracts organic results.
func (s *Search) scrape(ctx context.Context, query string) ([]SearchResult, error) {
	reqURL := s.htmlSearchURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching search page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search page: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())

		if title == "" || href == "" {
			return true
		}
		if snippet == "" {
			snippet = title
		}

		results = append(results, SearchResult{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: snippet,
		})
		return len(results) < maxSearchResults
	})

	return results, nil
}

// instantAnswerResponse is the subset of the instant-answer API we use.
type instantAnswerResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// instantAnswers queries the JSON instant-answer API as a lighter fallback.
func (s *Search) instantAnswers(ctx context.Context, query string) ([]SearchResult, error) {
	reqURL := s.instantAnswerURL + "?q=" + url.QueryEscape(query) + "&format=json&no_redirect=1&no_html=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building instant answer request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching instant answers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instant answer API returned status %d", resp.StatusCode)
	}

	var answer instantAnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decoding instant answers: %w", err)
	}

	var results []SearchResult
	if answer.AbstractText != "" {
		title := answer.Heading
		if title == "" {
			title = query
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     answer.AbstractURL,
			Snippet: answer.AbstractText,
		})
	}

	for _, topic := range answer.RelatedTopics {
		if len(results) >= maxSearchResults {
			break
		}
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		title, _, found := strings.Cut(topic.Text, " - ")
		if !found && len(topic.Text) > 60 {
			title = topic.Text[:60]
		} else if !found {
			title = topic.Text
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     topic.FirstURL,
			Snippet: topic.Text,
		})
	}

	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the
// destination URL. Unrecognized links are returned as-is.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
