// Package llm issues streaming chat-completion requests against
// OpenAI-compatible providers with primary-to-fallback failover.
//
// The client returns a lazy pull-based chunk sequence (iter.Seq2) over the
// provider's server-sent event stream. The sequence is restartable only by
// calling ChatStream again; breaking out of the range closes the underlying
// connection.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/vibeyhq/vibey/internal/log"
)

var (
	// ErrNoProviders indicates no provider endpoint is configured at all.
	// This is a configuration error: no network request has been attempted.
	ErrNoProviders = errors.New("no LLM providers configured")

	// ErrAllProvidersFailed indicates every configured provider failed.
	ErrAllProvidersFailed = errors.New("all LLM providers failed")
)

// defaultTimeout bounds the whole streaming request, headers through body.
const defaultTimeout = 120 * time.Second

// Endpoint identifies one OpenAI-compatible provider.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (e Endpoint) configured() bool {
	return e.BaseURL != "" && e.APIKey != ""
}

// Options configures a Client.
type Options struct {
	Primary     Endpoint
	Fallback    Endpoint
	Temperature float64
	Tools       []Tool // provider-facing tool catalog, sent when tools are enabled
	HTTPClient  *http.Client
	Logger      log.Logger
}

// Client is the provider gateway. It holds no per-request state and is safe
// for concurrent use.
type Client struct {
	primary     Endpoint
	fallback    Endpoint
	temperature float64
	tools       []Tool
	httpClient  *http.Client
	logger      log.Logger
}

// New creates a provider gateway client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		primary:     opts.Primary,
		fallback:    opts.Fallback,
		temperature: opts.Temperature,
		tools:       opts.Tools,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// request is the chat-completions request body.
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
}

// ChatStream opens a streaming completion for the given messages.
//
// The primary provider is attempted first; on any transport error or
// non-success status the fallback is tried with the same payload (model
// substituted). The returned error wraps ErrAllProvidersFailed if every
// configured provider failed, or is ErrNoProviders if none is configured;
// in that case no network request is made.
//
// toolsEnabled=false omits the tool catalog entirely, so the model cannot
// request further tool calls on the synthesis pass.
func (c *Client) ChatStream(ctx context.Context, messages []Message, toolsEnabled bool) (iter.Seq2[Chunk, error], error) {
	if !c.primary.configured() && !c.fallback.configured() {
		return nil, ErrNoProviders
	}

	req := request{
		Messages:    messages,
		Temperature: c.temperature,
		Stream:      true,
	}
	if toolsEnabled && len(c.tools) > 0 {
		req.Tools = c.tools
		req.ToolChoice = "auto"
	}

	var lastErr error
	for _, ep := range []Endpoint{c.primary, c.fallback} {
		if !ep.configured() {
			continue
		}

		body, err := c.open(ctx, ep, req)
		if err != nil {
			c.logger.Warn("provider request failed, trying next",
				"base_url", ep.BaseURL, "model", ep.Model, "error", err)
			lastErr = err
			continue
		}

		return scanStream(body), nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// open issues the POST and returns the response body on success (2xx).
// Non-success responses are drained for their error text and closed.
func (c *Client) open(ctx context.Context, ep Endpoint, req request) (io.ReadCloser, error) {
	req.Model = ep.Model

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ep.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+ep.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return resp.Body, nil
}
