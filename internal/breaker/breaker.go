// Package breaker stops a client from hammering a wiki that keeps failing.
//
// After Threshold consecutive failures the breaker opens and rejects calls
// until Cooldown has passed. It then lets a single trial call through: success
// closes it again, failure reopens it for another Cooldown.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// Defaults used by New when given zero values.
const (
	DefaultThreshold = 5
	DefaultCooldown  = 30 * time.Second
)

// State is the position of the breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OpenError is returned by Allow while the breaker rejects calls.
type OpenError struct {
	Failures int
	RetryAt  time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("wiki unavailable after %d consecutive failures, retry after %s",
		e.Failures, e.RetryAt.Format(time.RFC3339))
}

// Breaker is safe for concurrent use.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	// OnChange, if set, is called with the new state on every transition.
	// It runs with the breaker locked and must not call back into it.
	OnChange func(State)

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	trialActive bool
}

// New returns a closed breaker. Zero arguments select the defaults.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow returns nil if a call may proceed and an *OpenError otherwise.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		retryAt := b.openedAt.Add(b.cooldown)
		if b.now().Before(retryAt) {
			return &OpenError{Failures: b.failures, RetryAt: retryAt}
		}
		b.setState(HalfOpen)
		b.trialActive = true
		return nil
	case HalfOpen:
		if b.trialActive {
			return &OpenError{Failures: b.failures, RetryAt: b.openedAt.Add(b.cooldown)}
		}
		b.trialActive = true
		return nil
	default:
		return nil
	}
}

// Success records a call the wiki answered.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trialActive = false
	if b.state != Closed {
		b.setState(Closed)
	}
}

// Failure records a call the wiki did not answer.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.trialActive = false
	if b.state == HalfOpen || (b.state == Closed && b.failures >= b.threshold) {
		b.openedAt = b.now()
		b.setState(Open)
	}
}

// Release gives up a call that ended without a verdict, e.g. because its
// context was cancelled, so a half-open breaker can admit another trial call.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false
}

// State returns the current state without changing it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(s State) {
	b.state = s
	if b.OnChange != nil {
		b.OnChange(s)
	}
}
