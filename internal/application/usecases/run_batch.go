package usecases

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// SessionRunner runs one full session for one prompt.
type SessionRunner interface {
	Execute(ctx context.Context, input RunSessionInput) (*models.Session, error)
}

// SessionStore persists finished sessions. Satisfied by the file store,
// the Postgres repository and the persister service.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
}

// RunBatch fans independent prompts out across a bounded worker pool.
// Sessions share nothing: each worker owns the session it is running,
// so a slow or failing prompt never stalls the others.
type RunBatch struct {
	runner SessionRunner
	store  SessionStore
	logger *slog.Logger
}

// NewRunBatch builds the batch use case. store may be nil, in which case
// finished sessions are only returned, not persisted.
func NewRunBatch(runner SessionRunner, store SessionStore, logger *slog.Logger) *RunBatch {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunBatch{runner: runner, store: store, logger: logger}
}

// RunBatchInput lists the prompts to process. Workers <= 0 selects the
// default pool size.
type RunBatchInput struct {
	Prompts    []string
	Iterations int
	Workers    int
}

// RunBatchResult reports the finished sessions in input order plus the
// success/failure tally.
type RunBatchResult struct {
	Sessions  []*models.Session
	Succeeded int
	Failed    int
}

// DefaultWorkers is the pool size used when none is configured: the CPU
// count, capped at 4 so a wide machine does not hammer the backend.
func DefaultWorkers() int {
	w := runtime.NumCPU()
	if w > 4 {
		w = 4
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Execute runs every prompt through the session runner. A prompt that
// fails validation or whose context is already dead counts as failed;
// the rest of the batch keeps going.
func (uc *RunBatch) Execute(ctx context.Context, input RunBatchInput) (*RunBatchResult, error) {
	if len(input.Prompts) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	workers := input.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers > len(input.Prompts) {
		workers = len(input.Prompts)
	}

	uc.logger.InfoContext(ctx, "batch started",
		"prompts", len(input.Prompts), "workers", workers, "iterations", input.Iterations)

	type job struct {
		index  int
		prompt string
	}

	jobs := make(chan job)
	results := make([]*models.Session, len(input.Prompts))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					uc.logger.WarnContext(ctx, "batch prompt skipped",
						"index", j.index, "error", ctx.Err())
					continue
				}

				session, err := uc.runner.Execute(ctx, RunSessionInput{
					Prompt:     j.prompt,
					Iterations: input.Iterations,
				})
				if err != nil {
					uc.logger.ErrorContext(ctx, "batch prompt failed",
						"index", j.index, "error", err)
					continue
				}

				results[j.index] = session
				uc.save(ctx, session)
			}
		}()
	}

	for i, p := range input.Prompts {
		jobs <- job{index: i, prompt: p}
	}
	close(jobs)
	wg.Wait()

	result := &RunBatchResult{}
	for _, s := range results {
		if s == nil {
			result.Failed++
			continue
		}
		result.Sessions = append(result.Sessions, s)
		result.Succeeded++
	}

	uc.logger.InfoContext(ctx, "batch finished",
		"succeeded", result.Succeeded, "failed", result.Failed)

	return result, nil
}

func (uc *RunBatch) save(ctx context.Context, session *models.Session) {
	if uc.store == nil {
		return
	}
	if err := uc.store.Save(ctx, session); err != nil {
		uc.logger.ErrorContext(ctx, "failed to save session",
			"session_id", session.ID, "error", err)
	}
}
