package platform

import (
	"sync"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// CircuitBreaker wraps models.CircuitBreakerState with the mutations an
// Adapter needs: threshold consecutive failures opens it, and it
// half-closes after the reset window elapses (§4.8 "Circuit breaker").
type CircuitBreaker struct {
	mu    sync.Mutex
	state models.CircuitBreakerState
}

func NewCircuitBreaker(threshold int, reset time.Duration) CircuitBreaker {
	return CircuitBreaker{state: models.CircuitBreakerState{Threshold: threshold, Reset: reset}}
}

// Open reports whether writes should be short-circuited right now.
func (b *CircuitBreaker) Open(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Open(now)
}

func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Failures++
	b.state.LastFailure = now
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Failures = 0
}

func (b *CircuitBreaker) Snapshot() models.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
