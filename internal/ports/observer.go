package ports

import (
	"time"
)

// RunObserver receives progress events for a session run: iteration
// start/success/failure and session completion. Implementations must be
// safe for concurrent use and must not block; the engine fires and
// forgets. Attempt-level events are emitted through the structured
// logger and metrics instead.
type RunObserver interface {
	OnIterationStart(sessionID string, iteration, total int)
	OnIterationComplete(sessionID string, iteration int, score float64, duration time.Duration)
	OnIterationFailed(sessionID string, iteration int, err error)
	OnSessionComplete(sessionID string, bestScore float64, duration time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnIterationStart(string, int, int)                        {}
func (NopObserver) OnIterationComplete(string, int, float64, time.Duration) {}
func (NopObserver) OnIterationFailed(string, int, error)                    {}
func (NopObserver) OnSessionComplete(string, float64, time.Duration)        {}

// MultiObserver fans events out to every wrapped observer in order.
type MultiObserver []RunObserver

func (m MultiObserver) OnIterationStart(sessionID string, iteration, total int) {
	for _, o := range m {
		o.OnIterationStart(sessionID, iteration, total)
	}
}

func (m MultiObserver) OnIterationComplete(sessionID string, iteration int, score float64, duration time.Duration) {
	for _, o := range m {
		o.OnIterationComplete(sessionID, iteration, score, duration)
	}
}

func (m MultiObserver) OnIterationFailed(sessionID string, iteration int, err error) {
	for _, o := range m {
		o.OnIterationFailed(sessionID, iteration, err)
	}
}

func (m MultiObserver) OnSessionComplete(sessionID string, bestScore float64, duration time.Duration) {
	for _, o := range m {
		o.OnSessionComplete(sessionID, bestScore, duration)
	}
}
