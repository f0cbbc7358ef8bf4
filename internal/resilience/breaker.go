// Package resilience provides reliability patterns for calls to external
// collaborators.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker trips after a run of consecutive failures and rejects calls for a
// cooldown period. Once the cooldown elapses a single probe call goes
// through; its outcome either closes the circuit or trips it again.
type Breaker struct {
	mu        sync.Mutex
	state     state
	streak    int
	threshold int
	cooldown  time.Duration
	trippedAt time.Time
	now       func() time.Time // for testing
}

// NewBreaker returns a breaker that trips after threshold consecutive
// failures and rejects calls for the cooldown duration.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.trippedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.streak = 0
		b.state = stateClosed
		return
	}

	b.streak++
	if b.state == stateHalfOpen || b.streak >= b.threshold {
		b.state = stateOpen
		b.trippedAt = b.now()
	}
}
