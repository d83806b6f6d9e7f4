package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// SessionRepository stores finished sessions in PostgreSQL. The iteration
// list rides along as one JSONB document per session; the row itself
// carries the queryable columns plus an optional prompt embedding used
// for similarity search.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// conn returns the active transaction from the context when there is
// one, the pool otherwise.
func (r *SessionRepository) conn(ctx context.Context) interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	return GetConn(ctx, r.pool)
}

const sessionColumns = `id, original_prompt, start_time, end_time, duration_seconds, iterations, best_solution, best_score`

// Save upserts the session row, replacing any earlier version of the
// same session.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	iterations, err := json.Marshal(session.Iterations)
	if err != nil {
		return fmt.Errorf("failed to encode iterations for session %s: %w", session.ID, err)
	}

	query := `
		INSERT INTO refinery_sessions (
			id, original_prompt, start_time, end_time, duration_seconds,
			iterations, best_solution, best_score
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			duration_seconds = EXCLUDED.duration_seconds,
			iterations = EXCLUDED.iterations,
			best_solution = EXCLUDED.best_solution,
			best_score = EXCLUDED.best_score`

	_, err = r.conn(ctx).Exec(ctx, query,
		session.ID,
		session.OriginalPrompt,
		session.StartTime,
		session.EndTime,
		session.DurationSeconds,
		iterations,
		session.BestSolution,
		session.BestScore,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + sessionColumns + `
		FROM refinery_sessions
		WHERE id = $1`

	session, err := scanSession(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// List returns sessions newest first. limit <= 0 means no limit.
func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + sessionColumns + `
		FROM refinery_sessions
		ORDER BY start_time DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := r.conn(ctx).Exec(ctx, `DELETE FROM refinery_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// UpdateEmbedding attaches the task prompt embedding to a stored session.
func (r *SessionRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	vector := pgvector.NewVector(embedding)
	result, err := r.conn(ctx).Exec(ctx,
		`UPDATE refinery_sessions SET embedding = $1 WHERE id = $2`, vector, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// SearchSimilar returns the stored sessions whose prompts are nearest to
// the query embedding, nearest first. Sessions without an embedding are
// never returned.
func (r *SessionRepository) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	vector := pgvector.NewVector(embedding)

	query := `
		SELECT ` + sessionColumns + `
		FROM refinery_sessions
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, vector, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var iterations []byte
	if err := row.Scan(
		&s.ID,
		&s.OriginalPrompt,
		&s.StartTime,
		&s.EndTime,
		&s.DurationSeconds,
		&iterations,
		&s.BestSolution,
		&s.BestScore,
	); err != nil {
		return nil, err
	}

	its, err := unmarshalJSONSlice[models.Iteration](iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to decode iterations for session %s: %w", s.ID, err)
	}
	if its == nil {
		its = []models.Iteration{}
	}
	s.Iterations = its
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*models.Session, error) {
	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
