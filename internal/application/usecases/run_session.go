package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/refinery/internal/adapters/metrics"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
	"github.com/longregen/refinery/internal/prompt"
)

// Invoker is the labeled generation gateway the session loop calls for
// solutions and critiques.
type Invoker interface {
	Invoke(ctx context.Context, prompt, label string) (string, error)
}

// Evaluator scores one candidate solution. Implementations never fail;
// a broken judging call is absorbed into a synthesized evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, task, candidate string, iteration int) *models.Evaluation
}

// RunSession drives the improvement loop for a single task prompt:
// generate a solution, judge it, critique it, feed the critique into the
// next round. Iterations run strictly in order; a failed iteration is
// logged and skipped, never fatal. The finished session record is always
// complete, even when every iteration failed.
type RunSession struct {
	composer  *prompt.Composer
	invoker   Invoker
	evaluator Evaluator
	ids       ports.IDGenerator
	observer  ports.RunObserver
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewRunSession(
	composer *prompt.Composer,
	invoker Invoker,
	evaluator Evaluator,
	ids ports.IDGenerator,
	observer ports.RunObserver,
	logger *slog.Logger,
) *RunSession {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunSession{
		composer:  composer,
		invoker:   invoker,
		evaluator: evaluator,
		ids:       ids,
		observer:  observer,
		logger:    logger,
		tracer:    otel.Tracer("refinery.orchestrator"),
	}
}

// RunSessionInput carries the task prompt and the number of improvement
// rounds to run. SessionID is minted when empty; the HTTP boundary sets
// it so the id can be acknowledged before the run finishes.
type RunSessionInput struct {
	Prompt     string
	Iterations int
	SessionID  string
}

// Execute runs the full loop and returns the finished session. The only
// errors are input validation; run-time failures degrade individual
// iterations instead.
func (uc *RunSession) Execute(ctx context.Context, input RunSessionInput) (*models.Session, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if input.Iterations < 1 {
		return nil, domain.ErrInvalidIterations
	}

	id := input.SessionID
	if id == "" {
		id = uc.ids.NewSessionID()
	}
	session := models.NewSession(id, input.Prompt)

	ctx, span := uc.tracer.Start(ctx, "session.run",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.Int("session.iterations", input.Iterations),
		))
	defer span.End()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	uc.logger.InfoContext(ctx, "session started",
		"session_id", session.ID, "iterations", input.Iterations)

	var previousSolution, previousCritique string

	for i := 1; i <= input.Iterations; i++ {
		uc.observer.OnIterationStart(session.ID, i, input.Iterations)

		iteration, err := uc.runIteration(ctx, session.ID, input.Prompt, i, input.Iterations, previousSolution, previousCritique)
		if err != nil {
			metrics.IterationsTotal.WithLabelValues("failed").Inc()
			uc.observer.OnIterationFailed(session.ID, i, err)
			uc.logger.ErrorContext(ctx, "iteration failed, moving on",
				"session_id", session.ID, "iteration", i, "error", err)
			continue
		}

		session.RecordIteration(*iteration)
		metrics.IterationsTotal.WithLabelValues("success").Inc()
		uc.observer.OnIterationComplete(session.ID, i, iteration.Evaluation.OverallScore,
			time.Duration(iteration.DurationSeconds*float64(time.Second)))
		uc.logger.InfoContext(ctx, "iteration complete",
			"session_id", session.ID, "iteration", i,
			"score", iteration.Evaluation.OverallScore, "best_score", session.BestScore)

		previousSolution = iteration.Solution
		if iteration.Critique != nil {
			previousCritique = *iteration.Critique
		}
	}

	session.Finish()

	status := "completed"
	if len(session.Iterations) == 0 {
		status = "failed"
	}
	metrics.SessionsTotal.WithLabelValues(status).Inc()
	if session.BestScore > models.InitialBestScore {
		metrics.BestScore.Observe(session.BestScore)
	}

	span.SetAttributes(
		attribute.Float64("session.best_score", session.BestScore),
		attribute.Int("session.iterations_recorded", len(session.Iterations)),
	)

	uc.observer.OnSessionComplete(session.ID, session.BestScore, session.EndTime.Sub(session.StartTime))
	uc.logger.InfoContext(ctx, "session finished",
		"session_id", session.ID, "best_score", session.BestScore,
		"iterations_recorded", len(session.Iterations),
		"duration_seconds", session.DurationSeconds)

	return session, nil
}

// runIteration performs one generate -> judge [-> critique] cycle. The
// final iteration is never critiqued.
func (uc *RunSession) runIteration(ctx context.Context, sessionID, originalPrompt string, index, total int, previousSolution, previousCritique string) (*models.Iteration, error) {
	ctx, span := uc.tracer.Start(ctx, "session.iteration",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("iteration.index", index),
		))
	defer span.End()

	start := time.Now()

	solutionPrompt := uc.composer.SolutionPrompt(originalPrompt, index, total, previousSolution, previousCritique)
	solution, err := uc.invoker.Invoke(ctx, solutionPrompt, fmt.Sprintf("solution_gen_iter_%d", index))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "solution generation failed")
		return nil, fmt.Errorf("generating solution: %w", err)
	}
	if strings.TrimSpace(solution) == "" {
		span.SetStatus(codes.Error, "empty solution")
		return nil, domain.ErrEmptySolution
	}

	evaluation := uc.evaluator.Evaluate(ctx, originalPrompt, solution, index)

	var critique *string
	if index < total {
		critiquePrompt := uc.composer.CritiquePrompt(originalPrompt, solution, index, total)
		text, err := uc.invoker.Invoke(ctx, critiquePrompt, fmt.Sprintf("critique_iter_%d", index))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "critique generation failed")
			return nil, fmt.Errorf("generating critique: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			span.SetStatus(codes.Error, "empty critique")
			return nil, domain.ErrEmptyCritique
		}
		critique = &text
	}

	span.SetAttributes(attribute.Float64("iteration.score", evaluation.OverallScore))

	return &models.Iteration{
		Index:           index,
		Solution:        solution,
		Evaluation:      *evaluation,
		Critique:        critique,
		Timestamp:       time.Now(),
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}
