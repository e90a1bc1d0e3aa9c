// Package api is the HTTP surface of the chat backend: the streaming chat
// endpoint, history management, and health probes, wrapped in the shared
// middleware stack.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibeyhq/vibey/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Agent       TurnRunner    // Required
	History     ChatHistory   // Required
	Verifier    TokenVerifier // Required; resolves bearer tokens to users
	Pool        *pgxpool.Pool // Optional: nil disables pool stats in /ready
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers
	RateLimit   float64       // Tokens per second per IP (0 = default 0.25)
	RateBurst   int           // Rate limiter burst per IP (0 = default 15)
}

// Server is the JSON/SSE API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history store is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		agent:   cfg.Agent,
		history: cfg.History,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.chat)
	mux.HandleFunc("GET /api/chat/history", ch.getHistory)
	mux.HandleFunc("DELETE /api/chat/history", ch.clearHistory)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 0.25
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 15
	}
	rl := newRateLimiter(limit, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Identity → Routes
	// RequestID must be before Logging so request_id is available in logs.
	// CORS must be before RateLimit so preflight OPTIONS gets CORS headers.
	var handler http.Handler = mux
	handler = identityMiddleware(cfg.Verifier)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", healthHandler(logger))
	topMux.Handle("GET /ready", readinessHandler(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
