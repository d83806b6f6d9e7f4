package embedding

import (
	"errors"
	"sync"
	"time"
)

// errCircuitOpen is returned without touching the backend while the
// breaker is cooling down.
var errCircuitOpen = errors.New("embedding backend disabled after repeated failures")

// circuitBreaker shields session saves from a dead embedding backend.
// Embeddings are optional, so after maxFailures straight failures we
// stop paying the backend's timeout on every save and let a single
// trial call through after each cooldown.
type circuitBreaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration

	failures int
	openedAt time.Time
}

func newCircuitBreaker(maxFailures int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{maxFailures: maxFailures, cooldown: cooldown}
}

// call runs fn unless the breaker is open. The first call after the
// cooldown is the trial: success closes the breaker, failure restarts
// the cooldown.
func (b *circuitBreaker) call(fn func() error) error {
	if !b.allow() {
		return errCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.maxFailures {
		return true
	}
	if time.Since(b.openedAt) > b.cooldown {
		// Trial call: leave the count one below the threshold so a
		// failed trial reopens the breaker immediately.
		b.failures = b.maxFailures - 1
		return true
	}
	return false
}

func (b *circuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.failures >= b.maxFailures {
			b.openedAt = time.Now()
		}
		return
	}
	b.failures = 0
}
