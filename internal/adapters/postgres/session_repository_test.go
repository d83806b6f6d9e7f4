package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

func sessionRow(id string, start time.Time) *pgxmock.Rows {
	iterations := []byte(`[{
		"iteration": 1,
		"solution": "a deck builder about tides",
		"evaluation": {"scores": {"Novelty and creativity": 8}, "overall_score": 7.5, "feedback": "solid"},
		"critique": null,
		"timestamp": "2025-06-01T10:00:02Z",
		"duration_seconds": 2.5
	}]`)
	return pgxmock.NewRows([]string{
		"id", "original_prompt", "start_time", "end_time", "duration_seconds",
		"iterations", "best_solution", "best_score",
	}).AddRow(
		id, "design a card game", start, start.Add(6*time.Second), 6.0,
		iterations, "a deck builder about tides", 7.5,
	)
}

func TestSessionRepository_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)

	session := models.NewSession("ses_1", "design a card game")
	session.RecordIteration(models.Iteration{
		Index:      1,
		Solution:   "a deck builder about tides",
		Evaluation: models.Evaluation{Scores: map[string]int{}, OverallScore: 7.5, Feedback: "solid"},
		Timestamp:  time.Now(),
	})
	session.Finish()

	mock.ExpectExec("INSERT INTO refinery_sessions").
		WithArgs(
			session.ID,
			session.OriginalPrompt,
			session.StartTime,
			session.EndTime,
			session.DurationSeconds,
			pgxmock.AnyArg(),
			session.BestSolution,
			session.BestScore,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Save(ctx, session); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM refinery_sessions").
		WithArgs("ses_1").
		WillReturnRows(sessionRow("ses_1", start))

	ctx := setupMockContext(mock)
	session, err := repo.GetByID(ctx, "ses_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.ID != "ses_1" {
		t.Errorf("unexpected id: %s", session.ID)
	}
	if session.BestScore != 7.5 {
		t.Errorf("unexpected best score: %f", session.BestScore)
	}
	if len(session.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %d", len(session.Iterations))
	}
	if session.Iterations[0].Solution != "a deck builder about tides" {
		t.Errorf("unexpected solution: %s", session.Iterations[0].Solution)
	}
	if session.Iterations[0].Critique != nil {
		t.Error("critique should be nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)

	mock.ExpectQuery("SELECT (.+) FROM refinery_sessions").
		WithArgs("ses_missing").
		WillReturnError(pgx.ErrNoRows)

	ctx := setupMockContext(mock)
	_, err = repo.GetByID(ctx, "ses_missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := sessionRow("ses_new", start.Add(time.Hour))
	rows.AddRow(
		"ses_old", "another prompt", start, start.Add(6*time.Second), 6.0,
		[]byte(`[]`), "", -1.0,
	)

	mock.ExpectQuery("SELECT (.+) FROM refinery_sessions ORDER BY start_time DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(2, 1).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	sessions, err := repo.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "ses_new" || sessions[1].ID != "ses_old" {
		t.Errorf("unexpected order: %s, %s", sessions[0].ID, sessions[1].ID)
	}
	if len(sessions[1].Iterations) != 0 {
		t.Errorf("expected empty iterations, got %d", len(sessions[1].Iterations))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_List_NoPaging(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)

	mock.ExpectQuery("SELECT (.+) FROM refinery_sessions ORDER BY start_time DESC").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "original_prompt", "start_time", "end_time", "duration_seconds",
			"iterations", "best_solution", "best_score",
		}))

	ctx := setupMockContext(mock)
	sessions, err := repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)

	mock.ExpectExec("DELETE FROM refinery_sessions").
		WithArgs("ses_1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ctx := setupMockContext(mock)
	if err := repo.Delete(ctx, "ses_1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_Delete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)

	mock.ExpectExec("DELETE FROM refinery_sessions").
		WithArgs("ses_missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := setupMockContext(mock)
	err = repo.Delete(ctx, "ses_missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_UpdateEmbedding(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)
	embedding := []float32{0.1, 0.2, 0.3}

	mock.ExpectExec("UPDATE refinery_sessions SET embedding").
		WithArgs(pgvector.NewVector(embedding), "ses_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	if err := repo.UpdateEmbedding(ctx, "ses_1", embedding); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_SearchSimilar(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)
	embedding := []float32{0.1, 0.2, 0.3}
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM refinery_sessions WHERE embedding IS NOT NULL").
		WithArgs(pgvector.NewVector(embedding), 5).
		WillReturnRows(sessionRow("ses_near", start))

	ctx := setupMockContext(mock)
	sessions, err := repo.SearchSimilar(ctx, embedding, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "ses_near" {
		t.Errorf("unexpected result: %+v", sessions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionRepository_SearchSimilar_DefaultLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewSessionRepository(nil)
	embedding := []float32{0.5}

	mock.ExpectQuery("SELECT (.+) FROM refinery_sessions WHERE embedding IS NOT NULL").
		WithArgs(pgvector.NewVector(embedding), 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "original_prompt", "start_time", "end_time", "duration_seconds",
			"iterations", "best_solution", "best_score",
		}))

	ctx := setupMockContext(mock)
	sessions, err := repo.SearchSimilar(ctx, embedding, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
