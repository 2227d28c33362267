package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned by Allow while the breaker is rejecting calls.
var ErrBreakerOpen = eris.New("resilience: upstream circuit open")

// Breaker is a circuit breaker for a single upstream. After threshold
// consecutive failures it rejects calls for the cooldown period, then lets
// probes through; a probe success closes it again, a probe failure restarts
// the cooldown.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openedAt  time.Time

	now func() time.Time
}

// NewBreaker returns a closed breaker. Non-positive arguments fall back to
// 5 failures and a 30s cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. It returns ErrBreakerOpen while
// the cooldown is running.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		return nil // probe
	}
	return ErrBreakerOpen
}

// Record feeds a call outcome into the breaker. Success closes it; failure
// counts toward the threshold. Context cancellation is the caller's doing,
// not the upstream's, so it is ignored.
func (b *Breaker) Record(err error) {
	if err == nil {
		b.mu.Lock()
		b.failures = 0
		b.mu.Unlock()
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// State returns "closed", "open", or "half-open" for stats reporting.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return "closed"
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		return "half-open"
	}
	return "open"
}
