package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refinery_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refinery_sessions_active",
		Help: "Number of refinement sessions currently running",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_sessions_total",
		Help: "Total refinement sessions started",
	}, []string{"status"})

	IterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_iterations_total",
		Help: "Total refinement iterations",
	}, []string{"status"})

	BestScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refinery_best_score",
		Help:    "Best overall score reached by completed sessions",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_llm_requests_total",
		Help: "Total LLM requests",
	}, []string{"label", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refinery_llm_request_duration_seconds",
		Help:    "LLM request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"label"})

	LLMRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_llm_retries_total",
		Help: "LLM attempts retried after a failure",
	}, []string{"label"})

	EvaluationFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refinery_evaluation_fallbacks_total",
		Help: "Evaluations synthesized because the judge response was unusable",
	})
)
