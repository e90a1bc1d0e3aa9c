package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibeyhq/vibey/db"
	"github.com/vibeyhq/vibey/internal/agent"
	"github.com/vibeyhq/vibey/internal/api"
	"github.com/vibeyhq/vibey/internal/config"
	"github.com/vibeyhq/vibey/internal/llm"
	"github.com/vibeyhq/vibey/internal/log"
	"github.com/vibeyhq/vibey/internal/store"
	"github.com/vibeyhq/vibey/internal/tools"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs a long write window
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newServeLogger builds the JSON logger the server runs with.
func newServeLogger() log.Logger {
	return log.New(log.Config{Level: slog.LevelInfo, JSON: true})
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newServeLogger()
	logger.Info("starting HTTP API server", "version", appVersion, "config", cfg)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	st, err := store.New(pool, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	registry, err := tools.NewRegistry(
		tools.NewSearch(nil, logger),
		tools.NewMemory(st),
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating tool registry: %w", err)
	}

	gateway := llm.New(llm.Options{
		Primary:     llm.Endpoint{BaseURL: cfg.Primary.BaseURL, APIKey: cfg.Primary.APIKey, Model: cfg.Primary.Model},
		Fallback:    llm.Endpoint{BaseURL: cfg.Fallback.BaseURL, APIKey: cfg.Fallback.APIKey, Model: cfg.Fallback.Model},
		Temperature: cfg.Temperature,
		Tools:       registry.Definitions(),
		Logger:      logger,
	})

	ag := agent.New(agent.Options{
		LLM:             gateway,
		Tools:           registry,
		History:         st,
		Logger:          logger,
		MaxHistoryTurns: cfg.MaxHistoryTurns,
		FileCharBudget:  cfg.FileCharBudget,
		Timeout:         time.Duration(cfg.AgentTimeoutSec) * time.Second,
	})

	var verifier api.TokenVerifier = api.GuestOnlyVerifier{}
	if cfg.AuthSecret != "" {
		verifier, err = api.NewHMACVerifier([]byte(cfg.AuthSecret))
		if err != nil {
			return fmt.Errorf("creating token verifier: %w", err)
		}
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Agent:       ag,
		History:     st,
		Verifier:    verifier,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
