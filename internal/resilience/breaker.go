// Package resilience provides the per-operation circuit breakers that guard every
// orchestration phase.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError reports a rejected call. It unwraps to ErrCircuitOpen.
type OpenError struct {
	Name        string
	NextAttempt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open for %s, next attempt at %s", e.Name, e.NextAttempt.Format(time.RFC3339))
}

func (e *OpenError) Unwrap() error { return ErrCircuitOpen }

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a point-in-time copy of a breaker.
type Snapshot struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Failures    int       `json:"failure_count"`
	LastFailure time.Time `json:"last_failure,omitzero"`
	NextAttempt time.Time `json:"next_attempt,omitzero"`
	Threshold   int       `json:"threshold"`
}

// Breaker tracks consecutive failures of one named operation. It opens when the
// threshold is reached and rejects calls until the cooldown elapses, then lets a
// single trial call through in half-open state.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	nextAttempt time.Time
	trial       bool

	onChange func(name string, from, to State)
	now      func() time.Time // for testing
}

// NewBreaker creates a breaker that opens after threshold consecutive failures and
// stays open for cooldown before allowing a trial call.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Name returns the guarded operation name.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the circuit is open. A rejected call never invokes fn
// and returns an *OpenError. Errors from fn are returned unchanged. An error
// caused by the caller's own ctx ending is neither a failure nor a success.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.allow()
	if err != nil {
		return err
	}

	err = fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trial = false
	}
	switch {
	case err == nil:
		b.onSuccess()
	case callerGone(ctx, err):
	default:
		b.onFailure()
	}
	return err
}

// callerGone reports whether err is ctx's own cancellation or deadline.
func callerGone(ctx context.Context, err error) bool {
	cerr := ctx.Err()
	return cerr != nil && errors.Is(err, cerr)
}

// allow reports whether a call may proceed and whether it is the half-open trial.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Before(b.nextAttempt) {
			return false, &OpenError{Name: b.name, NextAttempt: b.nextAttempt}
		}
		b.transition(StateHalfOpen)
		b.trial = true
		return true, nil
	case StateHalfOpen:
		if b.trial {
			return false, &OpenError{Name: b.name, NextAttempt: b.nextAttempt}
		}
		b.trial = true
		return true, nil
	}
	return false, nil
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.nextAttempt = b.lastFailure.Add(b.cooldown)
		b.transition(StateOpen)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.lastFailure = time.Time{}
	b.nextAttempt = time.Time{}
	b.transition(StateClosed)
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:        b.name,
		State:       b.state,
		Failures:    b.failures,
		LastFailure: b.lastFailure,
		NextAttempt: b.nextAttempt,
		Threshold:   b.threshold,
	}
}
