package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the session table and its indexes if they do not
// exist. When embeddingDims > 0 the pgvector extension and the embedding
// column are set up as well; pass 0 on deployments without an embeddings
// backend so the server does not need pgvector installed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, embeddingDims int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS refinery_sessions (
			id TEXT PRIMARY KEY,
			original_prompt TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			iterations JSONB NOT NULL DEFAULT '[]',
			best_solution TEXT NOT NULL DEFAULT '',
			best_score DOUBLE PRECISION NOT NULL DEFAULT -1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_refinery_sessions_start_time
			ON refinery_sessions (start_time DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}

	if embeddingDims > 0 {
		if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			return fmt.Errorf("failed to enable pgvector: %w", err)
		}
		alter := fmt.Sprintf(
			`ALTER TABLE refinery_sessions ADD COLUMN IF NOT EXISTS embedding vector(%d)`,
			embeddingDims,
		)
		if _, err := pool.Exec(ctx, alter); err != nil {
			return fmt.Errorf("failed to add embedding column: %w", err)
		}
	}

	return nil
}
