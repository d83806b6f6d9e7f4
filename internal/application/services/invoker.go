package services

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
	"github.com/longregen/refinery/internal/adapters/retry"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/ports"
)

// Invoker is the single gateway for generative calls. Every call site
// names its request with a label; the invoker applies the retry policy,
// rejects blank completions and records per-label metrics so the rest of
// the engine never talks to the backend directly.
type Invoker struct {
	generator ports.TextGenerator
	policy    retry.Policy
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewInvoker builds an invoker around the given generator. The policy is
// validated once here so every later call can trust it.
func NewInvoker(generator ports.TextGenerator, policy retry.Policy, logger *slog.Logger) (*Invoker, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		generator: generator,
		policy:    policy,
		logger:    logger,
		tracer:    otel.Tracer("refinery.invoker"),
	}, nil
}

// Invoke sends prompt to the generator under the configured retry policy.
// A response that is empty after trimming counts as a failed attempt. On
// exhaustion the returned error wraps *retry.ExhaustedError with the label
// prepended.
func (v *Invoker) Invoke(ctx context.Context, prompt, label string) (string, error) {
	ctx, span := v.tracer.Start(ctx, "llm.invoke",
		trace.WithAttributes(
			attribute.String("llm.label", label),
			attribute.Int("llm.prompt_chars", len(prompt)),
		))
	defer span.End()

	start := time.Now()
	var result *ports.GenerationResult

	err := retry.DoWithNotify(ctx, v.policy,
		func() error {
			res, err := v.generator.Generate(ctx, prompt)
			if err != nil {
				return err
			}
			if strings.TrimSpace(res.Text) == "" {
				return domain.ErrEmptyResponse
			}
			result = res
			return nil
		},
		func(attempt int, err error, sleep time.Duration) {
			metrics.LLMRetriesTotal.WithLabelValues(label).Inc()
			v.logger.WarnContext(ctx, "generation attempt failed, backing off",
				"label", label, "attempt", attempt, "sleep", sleep, "error", err)
		})

	duration := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(label).Observe(duration.Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(label, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		v.logger.ErrorContext(ctx, "generation call failed",
			"label", label, "duration", duration, "error", err)
		return "", fmt.Errorf("%s: %w", label, err)
	}

	metrics.LLMRequestsTotal.WithLabelValues(label, "success").Inc()
	span.SetAttributes(
		attribute.String("llm.model", result.Model),
		attribute.Int("llm.tokens_used", result.TokensUsed),
	)
	v.logger.InfoContext(ctx, "generation call succeeded",
		"label", label, "model", result.Model, "tokens", result.TokensUsed, "duration", duration)

	return result.Text, nil
}
