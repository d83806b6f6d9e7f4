package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/refinery/internal/adapters/embedding"
	"github.com/longregen/refinery/internal/adapters/filestore"
	"github.com/longregen/refinery/internal/adapters/id"
	"github.com/longregen/refinery/internal/adapters/llm"
	"github.com/longregen/refinery/internal/adapters/postgres"
	"github.com/longregen/refinery/internal/adapters/retry"
	"github.com/longregen/refinery/internal/adapters/tracing"
	"github.com/longregen/refinery/internal/application/services"
	"github.com/longregen/refinery/internal/application/usecases"
	"github.com/longregen/refinery/internal/config"
	"github.com/longregen/refinery/internal/judge"
	"github.com/longregen/refinery/internal/ports"
	"github.com/longregen/refinery/internal/prompt"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Shared global variables
var (
	cfg       *config.Config
	llmClient *llm.Client
)

// retryPolicy maps the retry section of the config onto the backoff
// policy applied to every generation call.
func retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialDelay:   time.Duration(cfg.Retry.InitialDelaySeconds * float64(time.Second)),
		MaxDelay:       time.Duration(cfg.Retry.MaxDelaySeconds * float64(time.Second)),
		Multiplier:     cfg.Retry.Multiplier,
		JitterFraction: cfg.Retry.JitterFraction,
	}
}

// buildRunSession assembles the engine: prompt composer, retrying
// invoker, judge and orchestrator. observer may be nil.
func buildRunSession(observer ports.RunObserver) (*usecases.RunSession, error) {
	store := prompt.DefaultStore()
	if cfg.Pipeline.TemplateDir != "" {
		var err error
		store, err = prompt.LoadStore(cfg.Pipeline.TemplateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt templates: %w", err)
		}
	}

	composer, err := prompt.NewComposer(store, slog.Default())
	if err != nil {
		return nil, err
	}

	generator := llm.NewService(llmClient, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	invoker, err := services.NewInvoker(generator, retryPolicy(), slog.Default())
	if err != nil {
		return nil, err
	}

	return usecases.NewRunSession(
		composer,
		invoker,
		judge.New(invoker, slog.Default()),
		id.New(),
		observer,
		slog.Default(),
	), nil
}

// initDB initializes a database connection pool and ensures the schema
// exists.
func initDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("PostgreSQL connection required. Set REFINERY_DATABASE_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Force UTC timezone to prevent timezone-related issues with TIMESTAMP columns
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.EnsureSchema(ctx, pool, cfg.Embedding.Dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return pool, nil
}

// newEmbeddingClient returns the embeddings client, or nil when no
// endpoint is configured.
func newEmbeddingClient() *embedding.Client {
	if !cfg.IsEmbeddingConfigured() {
		return nil
	}
	return embedding.NewClient(embedding.ClientConfig{
		BaseURL:    cfg.Embedding.URL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Retry:      retryPolicy(),
	})
}

// sessionBackend bundles the chosen persistence backend: the raw
// repository plus the persister that adds prompt embeddings on top.
type sessionBackend struct {
	store     ports.SessionRepository
	persister *services.SessionPersister
	pool      *pgxpool.Pool
}

func (b *sessionBackend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// openBackend picks PostgreSQL when configured and the JSON file store
// otherwise.
func openBackend(ctx context.Context, outputDir string) (*sessionBackend, error) {
	if cfg.IsDatabaseConfigured() {
		pool, err := initDB(ctx)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewSessionRepository(pool)

		var embedder ports.EmbeddingService
		if client := newEmbeddingClient(); client != nil {
			embedder = client
		}

		return &sessionBackend{
			store:     repo,
			persister: services.NewSessionPersister(repo, repo, embedder, postgres.NewTransactionManager(pool), slog.Default()),
			pool:      pool,
		}, nil
	}

	store, err := filestore.New(outputDir, slog.Default())
	if err != nil {
		return nil, err
	}
	return &sessionBackend{
		store:     store,
		persister: services.NewSessionPersister(store, nil, nil, nil, slog.Default()),
	}, nil
}

// initTracing installs the stdout span exporter when tracing is
// enabled. The returned function flushes pending spans.
func initTracing(ctx context.Context) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := tracing.InitTracer("refinery")
	if err != nil {
		slog.Warn("failed to initialize tracing", slog.Any("error", err))
		return func() {}
	}
	return func() {
		if err := shutdown(ctx); err != nil {
			slog.Warn("failed to shut down tracer", slog.Any("error", err))
		}
	}
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
