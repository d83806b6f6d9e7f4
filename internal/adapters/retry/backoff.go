package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy is the immutable retry configuration shared read-only by every
// invocation in a run. MaxAttempts counts the total attempts, including
// the first one.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("initial delay must not be negative, got %s", p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max delay %s is below initial delay %s", p.MaxDelay, p.InitialDelay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %f", p.Multiplier)
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		return fmt.Errorf("jitter fraction must be within [0, 1], got %f", p.JitterFraction)
	}
	return nil
}

// Schedule returns the base delays slept between attempts, jitter
// excluded: one entry fewer than MaxAttempts.
func (p Policy) Schedule() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	d := p.InitialDelay
	for i := 0; i < p.MaxAttempts-1; i++ {
		delays = append(delays, d)
		d = time.Duration(float64(d) * p.Multiplier)
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	return delays
}

// ExhaustedError is the terminal failure after every attempt allowed by
// the policy has failed. It carries the last underlying error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Func is one attempt of the operation under retry.
type Func func() error

// Do runs fn until it succeeds or the policy's attempt budget is spent.
// Every failure is retried; between attempts it sleeps the current delay
// plus uniform jitter, then grows the delay by the multiplier up to
// MaxDelay. Cancelling the context aborts a pending sleep.
func Do(ctx context.Context, p Policy, fn Func) error {
	return DoWithNotify(ctx, p, fn, nil)
}

// DoWithNotify is Do with a callback reporting each failed attempt and
// the sleep chosen before the next one.
func DoWithNotify(ctx context.Context, p Policy, fn Func, notify func(attempt int, err error, sleep time.Duration)) error {
	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		sleep := delay + jitter(delay, p.JitterFraction)
		if notify != nil {
			notify(attempt, lastErr, sleep)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * fraction * float64(d))
}
