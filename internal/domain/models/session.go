package models

import (
	"time"
)

// InitialBestScore is the sentinel best score of a session before any
// iteration has been judged. It sits below every valid overall score.
const InitialBestScore = -1

// Session is one end-to-end run of the improvement loop for a single
// task prompt. It is owned by the orchestrator while the run is in
// flight and immutable afterwards except for serialization.
type Session struct {
	ID              string      `json:"session_id"`
	OriginalPrompt  string      `json:"original_prompt"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	DurationSeconds float64     `json:"duration_seconds"`
	Iterations      []Iteration `json:"iterations"`
	BestSolution    string      `json:"best_solution"`
	BestScore       float64     `json:"best_score"`
}

func NewSession(id, originalPrompt string) *Session {
	return &Session{
		ID:             id,
		OriginalPrompt: originalPrompt,
		StartTime:      time.Now(),
		Iterations:     []Iteration{},
		BestScore:      InitialBestScore,
	}
}

// RecordIteration appends a completed iteration in completion order and
// updates the best solution when the iteration's overall score strictly
// exceeds the current best. Ties keep the earlier iteration.
func (s *Session) RecordIteration(it Iteration) {
	s.Iterations = append(s.Iterations, it)
	if it.Evaluation.OverallScore > s.BestScore {
		s.BestScore = it.Evaluation.OverallScore
		s.BestSolution = it.Solution
	}
}

// Finish stamps the end time and total duration. Called exactly once,
// after the iteration loop, however many iterations succeeded.
func (s *Session) Finish() {
	s.EndTime = time.Now()
	s.DurationSeconds = s.EndTime.Sub(s.StartTime).Seconds()
}

// Completed reports whether the session has been finalized.
func (s *Session) Completed() bool {
	return !s.EndTime.IsZero()
}

// Iteration is one generate -> evaluate [-> critique] cycle within a
// session. Critique is nil on the final iteration, which is never
// critiqued, and serializes as JSON null.
type Iteration struct {
	Index           int        `json:"iteration"`
	Solution        string     `json:"solution"`
	Evaluation      Evaluation `json:"evaluation"`
	Critique        *string    `json:"critique"`
	Timestamp       time.Time  `json:"timestamp"`
	DurationSeconds float64    `json:"duration_seconds"`
}

func (it *Iteration) HasCritique() bool {
	return it.Critique != nil
}
