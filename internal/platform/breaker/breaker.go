package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a Breaker.
type State string

const (
	// Closed lets calls through.
	Closed State = "closed"
	// Open rejects calls until the reset timeout elapses.
	Open State = "open"
	// HalfOpen lets a single trial call through.
	HalfOpen State = "half-open"
)

var (
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTrialInFlight is returned while the half-open trial call has not finished.
	ErrTrialInFlight = errors.New("circuit breaker trial call in flight")
)

// Breaker fails fast after maxFailures consecutive failures and retries one
// call once resetTimeout has passed. A cancelled caller context is not a failure.
type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        Closed,
	}
}

// Call runs fn under breaker protection.
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = false
	}

	if b.state == HalfOpen {
		if b.probing {
			return ErrTrialInFlight
		}
		b.probing = true
	}

	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		b.probing = false
		return
	}

	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		if b.state == HalfOpen || b.failures >= b.maxFailures {
			b.state = Open
		}
		b.probing = false
		return
	}

	b.state = Closed
	b.failures = 0
	b.probing = false
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probing = false
}
