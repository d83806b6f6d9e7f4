package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/longregen/refinery/internal/adapters/metrics"
	"github.com/longregen/refinery/internal/domain/models"
)

// MaxSolutionChars bounds the candidate prefix embedded in an evaluation
// request so oversized solutions never blow up the judging call.
const MaxSolutionChars = 2000

// Invoker is the retrying call capability the judge sends evaluation
// requests through.
type Invoker interface {
	Invoke(ctx context.Context, prompt, label string) (string, error)
}

// Judge scores a candidate solution against the fixed criterion set by
// asking the generative service for a JSON verdict. Evaluate never fails:
// any internal error degrades to the synthesized neutral evaluation, so
// a bad judging call can never halt the pipeline.
type Judge struct {
	invoker Invoker
	logger  *slog.Logger
}

func New(invoker Invoker, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{invoker: invoker, logger: logger}
}

// Evaluate judges candidate against the original task for the given
// 1-based iteration.
func (j *Judge) Evaluate(ctx context.Context, task, candidate string, iteration int) *models.Evaluation {
	label := fmt.Sprintf("solution_eval_iter_%d", iteration)

	response, err := j.invoker.Invoke(ctx, evaluationPrompt(task, candidate), label)
	if err != nil {
		j.logger.ErrorContext(ctx, "evaluation call failed, synthesizing neutral result",
			"iteration", iteration, "error", err)
		metrics.EvaluationFallbacksTotal.Inc()
		return models.FallbackEvaluation(fmt.Sprintf("Evaluation failed due to an error: %v", err), err)
	}

	eval, err := ParseEvaluation(response)
	if err != nil {
		j.logger.WarnContext(ctx, "evaluation response unusable, synthesizing neutral result",
			"iteration", iteration, "error", err)
		metrics.EvaluationFallbacksTotal.Inc()
		return models.FallbackEvaluation(fmt.Sprintf("Evaluation failed - could not parse response: %v", err), err)
	}

	return eval
}

func evaluationPrompt(task, candidate string) string {
	return fmt.Sprintf(`You are an expert judge evaluating a solution.
Your response MUST be a valid JSON object with the following structure:
{
    "scores": {
        "Novelty and creativity": 0,
        "Clarity and specificity": 0,
        "Feasibility and practicality": 0,
        "Engagement and fun factor": 0,
        "Balance and fairness": 0
    },
    "overall_score": 0,
    "feedback": "Your detailed feedback here"
}

Evaluation Criteria (rate each 1-10):
1. Novelty and creativity: How original and innovative is the solution?
2. Clarity and specificity: How clear and well-defined is the solution?
3. Feasibility and practicality: How practical and implementable is the solution?
4. Engagement and fun factor: How engaging and interesting is the solution?
5. Balance and fairness: How well-balanced and fair is the solution?

PROMPT TO EVALUATE:
%s

SOLUTION TO EVALUATE:
%s

Provide your evaluation in valid JSON format as specified above.`, task, truncateForPrompt(candidate, MaxSolutionChars))
}

// truncateForPrompt keeps a bounded prefix of s.
func truncateForPrompt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
