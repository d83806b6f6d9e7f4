package dto

import (
	"time"

	"github.com/longregen/refinery/internal/domain/models"
)

// CreateSessionRequest starts a new refinement run.
type CreateSessionRequest struct {
	Prompt     string `json:"prompt"`
	Iterations int    `json:"iterations,omitempty"`
}

// SessionAcceptedResponse acknowledges an accepted run before it
// finishes; progress streams over the session's websocket feed.
type SessionAcceptedResponse struct {
	SessionID  string `json:"session_id" msgpack:"session_id"`
	Status     string `json:"status" msgpack:"status"`
	Iterations int    `json:"iterations" msgpack:"iterations"`
}

// EvaluationResponse mirrors one structured judgment.
type EvaluationResponse struct {
	Scores       map[string]int `json:"scores" msgpack:"scores"`
	OverallScore float64        `json:"overall_score" msgpack:"overall_score"`
	Feedback     string         `json:"feedback" msgpack:"feedback"`
	Error        string         `json:"error,omitempty" msgpack:"error,omitempty"`
}

// IterationResponse is one generate/evaluate/critique cycle. Critique is
// null on the final iteration.
type IterationResponse struct {
	Iteration       int                `json:"iteration" msgpack:"iteration"`
	Solution        string             `json:"solution" msgpack:"solution"`
	Evaluation      EvaluationResponse `json:"evaluation" msgpack:"evaluation"`
	Critique        *string            `json:"critique" msgpack:"critique"`
	Timestamp       time.Time          `json:"timestamp" msgpack:"timestamp"`
	DurationSeconds float64            `json:"duration_seconds" msgpack:"duration_seconds"`
}

// SessionResponse is the full record of one refinement run.
type SessionResponse struct {
	SessionID       string              `json:"session_id" msgpack:"session_id"`
	OriginalPrompt  string              `json:"original_prompt" msgpack:"original_prompt"`
	StartTime       time.Time           `json:"start_time" msgpack:"start_time"`
	EndTime         time.Time           `json:"end_time" msgpack:"end_time"`
	DurationSeconds float64             `json:"duration_seconds" msgpack:"duration_seconds"`
	Iterations      []IterationResponse `json:"iterations" msgpack:"iterations"`
	BestSolution    string              `json:"best_solution" msgpack:"best_solution"`
	BestScore       float64             `json:"best_score" msgpack:"best_score"`
}

// SessionSummaryResponse is the list-view projection: everything except
// the iteration bodies.
type SessionSummaryResponse struct {
	SessionID       string    `json:"session_id" msgpack:"session_id"`
	OriginalPrompt  string    `json:"original_prompt" msgpack:"original_prompt"`
	StartTime       time.Time `json:"start_time" msgpack:"start_time"`
	EndTime         time.Time `json:"end_time" msgpack:"end_time"`
	DurationSeconds float64   `json:"duration_seconds" msgpack:"duration_seconds"`
	IterationCount  int       `json:"iteration_count" msgpack:"iteration_count"`
	BestScore       float64   `json:"best_score" msgpack:"best_score"`
}

// SessionListResponse wraps a page of session summaries.
type SessionListResponse struct {
	Sessions []*SessionSummaryResponse `json:"sessions" msgpack:"sessions"`
	Total    int                       `json:"total" msgpack:"total"`
	Limit    int                       `json:"limit" msgpack:"limit"`
	Offset   int                       `json:"offset" msgpack:"offset"`
}

// SessionEvent is one frame on the websocket progress feed.
type SessionEvent struct {
	Type            string  `json:"type" msgpack:"type"`
	SessionID       string  `json:"session_id" msgpack:"session_id"`
	Iteration       int     `json:"iteration,omitempty" msgpack:"iteration,omitempty"`
	Total           int     `json:"total,omitempty" msgpack:"total,omitempty"`
	Score           float64 `json:"score,omitempty" msgpack:"score,omitempty"`
	BestScore       float64 `json:"best_score,omitempty" msgpack:"best_score,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" msgpack:"duration_seconds,omitempty"`
	Error           string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Websocket feed event types.
const (
	EventIterationStart    = "iteration_start"
	EventIterationComplete = "iteration_complete"
	EventIterationFailed   = "iteration_failed"
	EventSessionComplete   = "session_complete"
)

// FromModel converts a domain session to the full response DTO.
func (r *SessionResponse) FromModel(s *models.Session) *SessionResponse {
	iterations := make([]IterationResponse, len(s.Iterations))
	for i, it := range s.Iterations {
		iterations[i] = IterationResponse{
			Iteration: it.Index,
			Solution:  it.Solution,
			Evaluation: EvaluationResponse{
				Scores:       it.Evaluation.Scores,
				OverallScore: it.Evaluation.OverallScore,
				Feedback:     it.Evaluation.Feedback,
				Error:        it.Evaluation.Error,
			},
			Critique:        it.Critique,
			Timestamp:       it.Timestamp,
			DurationSeconds: it.DurationSeconds,
		}
	}

	return &SessionResponse{
		SessionID:       s.ID,
		OriginalPrompt:  s.OriginalPrompt,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.DurationSeconds,
		Iterations:      iterations,
		BestSolution:    s.BestSolution,
		BestScore:       s.BestScore,
	}
}

// SummaryFromModel converts a domain session to its list-view summary.
func SummaryFromModel(s *models.Session) *SessionSummaryResponse {
	return &SessionSummaryResponse{
		SessionID:       s.ID,
		OriginalPrompt:  s.OriginalPrompt,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.DurationSeconds,
		IterationCount:  len(s.Iterations),
		BestScore:       s.BestScore,
	}
}

// FromSessionModelList converts a list of domain sessions to summaries.
func FromSessionModelList(sessions []*models.Session) []*SessionSummaryResponse {
	summaries := make([]*SessionSummaryResponse, len(sessions))
	for i, s := range sessions {
		summaries[i] = SummaryFromModel(s)
	}
	return summaries
}
