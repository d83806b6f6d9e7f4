package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// SessionPersister writes finished sessions to the configured store and,
// when an embedding backend is available, attaches a prompt embedding so
// the session becomes findable by similarity search.
//
// An embedding failure never loses a session: the record is saved
// without a vector and the failure is logged.
type SessionPersister struct {
	store    ports.SessionRepository
	searcher ports.SimilaritySearcher
	embedder ports.EmbeddingService
	tx       ports.TransactionManager
	logger   *slog.Logger
}

// NewSessionPersister wires the persister. searcher, embedder and tx may
// all be nil: without searcher+embedder sessions are stored without
// vectors, and without tx the writes run outside a transaction (the file
// store has no use for one).
func NewSessionPersister(
	store ports.SessionRepository,
	searcher ports.SimilaritySearcher,
	embedder ports.EmbeddingService,
	tx ports.TransactionManager,
	logger *slog.Logger,
) *SessionPersister {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionPersister{
		store:    store,
		searcher: searcher,
		embedder: embedder,
		tx:       tx,
		logger:   logger,
	}
}

// Save stores the session, embedding its task prompt first when an
// embedding backend is configured. The row write and the embedding
// update share one transaction when a transaction manager is present.
func (p *SessionPersister) Save(ctx context.Context, session *models.Session) error {
	var embedding []float32
	if p.embedder != nil && p.searcher != nil {
		vec, err := p.embedder.Embed(ctx, session.OriginalPrompt)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to embed session prompt, storing without vector",
				slog.String("session_id", session.ID),
				slog.Any("error", err))
		} else {
			embedding = vec
		}
	}

	write := func(ctx context.Context) error {
		if err := p.store.Save(ctx, session); err != nil {
			return fmt.Errorf("failed to save session %s: %w", session.ID, err)
		}
		if embedding != nil {
			if err := p.searcher.UpdateEmbedding(ctx, session.ID, embedding); err != nil {
				return fmt.Errorf("failed to store embedding for session %s: %w", session.ID, err)
			}
		}
		return nil
	}

	if p.tx != nil {
		return p.tx.WithTransaction(ctx, write)
	}
	return write(ctx)
}

// FindSimilar embeds the query text and returns the stored sessions
// whose task prompts are nearest to it, nearest first.
func (p *SessionPersister) FindSimilar(ctx context.Context, query string, limit int) ([]*models.Session, error) {
	if p.embedder == nil || p.searcher == nil {
		return nil, domain.ErrSearchUnavailable
	}

	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}
	return p.searcher.SearchSimilar(ctx, embedding, limit)
}

// CanSearch reports whether similarity search is configured.
func (p *SessionPersister) CanSearch() bool {
	return p.embedder != nil && p.searcher != nil
}
