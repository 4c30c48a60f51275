package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aqlhr/askaql/internal/api"
	"github.com/aqlhr/askaql/internal/auth"
	"github.com/aqlhr/askaql/internal/config"
	"github.com/aqlhr/askaql/internal/database"
	"github.com/aqlhr/askaql/internal/docstore"
	"github.com/aqlhr/askaql/internal/log"
	"github.com/aqlhr/askaql/internal/observability"
	"github.com/aqlhr/askaql/internal/provider"
	"github.com/aqlhr/askaql/internal/rag"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ParseDatabaseURL(); err != nil {
		return fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", Version)

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.TraceAgentHost,
		Environment: cfg.TraceEnvironment,
		ServiceName: cfg.TraceService,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if flushErr := shutdownTracing(flushCtx); flushErr != nil {
			logger.Warn("trace flush failed", "error", flushErr)
		}
	}()

	pool, err := database.Open(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	// Secondary provider host doubles as the embedder: embeddings must
	// come from a stable vendor or the stored vectors drift.
	primary := provider.NewClient(provider.Config{
		Name:    "genspark",
		BaseURL: cfg.Primary.BaseURL,
		APIKey:  cfg.Primary.APIKey,
		Model:   cfg.Primary.Model,
	}, logger)
	secondary := provider.NewClient(provider.Config{
		Name:       "openai",
		BaseURL:    cfg.Secondary.BaseURL,
		APIKey:     cfg.Secondary.APIKey,
		Model:      cfg.Secondary.Model,
		EmbedModel: cfg.EmbedModel,
	}, logger)
	chain := provider.NewChain(logger, primary, secondary)

	store := docstore.New(pool, secondary, logger)
	svc := rag.New(store, chain, logger)
	verifier := auth.NewClient(cfg.AuthURL, cfg.AuthServiceKey, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Service:    svc,
		Verifier:   verifier,
		Pool:       pool,
		TrustProxy: cfg.TrustProxy,
		RateBurst:  cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/v1/ask",
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
