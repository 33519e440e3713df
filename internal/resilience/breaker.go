// Package resilience holds the reliability primitives shared by outbound
// adapters.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker trips after a run of consecutive failures and rejects calls until
// a cool-down has passed. Once it has, a single probe call is admitted; the
// probe's outcome decides whether the circuit closes again or the cool-down
// restarts. The zero Breaker is not usable, construct with NewBreaker.
type Breaker struct {
	mu        sync.Mutex
	streak    int
	threshold int
	cooldown  time.Duration
	trippedAt time.Time // zero while the circuit is closed
	probing   bool
	clock     func() time.Time
}

// NewBreaker returns a breaker that trips after maxFailures consecutive
// failures and keeps rejecting for the given cool-down.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: maxFailures, cooldown: cooldown, clock: time.Now}
}

// Execute runs fn unless the circuit is rejecting, in which case it returns
// ErrCircuitOpen without invoking fn.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.trippedAt.IsZero() {
		return nil
	}
	if b.clock().Sub(b.trippedAt) < b.cooldown || b.probing {
		return ErrCircuitOpen
	}
	b.probing = true
	return nil
}

func (b *Breaker) settle(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.probing
	b.probing = false

	if ok {
		b.streak = 0
		b.trippedAt = time.Time{}
		return
	}

	b.streak++
	if wasProbe || b.streak >= b.threshold {
		b.trippedAt = b.clock()
	}
}

// Open reports whether the breaker is currently tripped.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.trippedAt.IsZero()
}
