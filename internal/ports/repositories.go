package ports

import (
	"context"

	"github.com/longregen/refinery/internal/domain/models"
)

// SessionRepository defines operations for session persistence. The
// engine assembles the record; adapters own the writes.
type SessionRepository interface {
	Save(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, limit, offset int) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// SimilaritySearcher finds stored sessions whose task prompts are
// nearest to the query embedding. Implemented by the Postgres
// repository on top of pgvector.
type SimilaritySearcher interface {
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*models.Session, error)
}

// TransactionManager runs a function inside one database transaction.
// fn returning an error rolls the transaction back; success commits.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
