// Package resilience provides the fault-tolerance primitives used around the
// service's optional dependencies (Redis, PostgreSQL, Kafka) and around
// query execution: a circuit breaker, retry with exponential backoff, and a
// deadline wrapper.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a breaker trips and how it recovers.
// OnStateChange, if set, is called (outside the breaker's lock) after every
// transition.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenTrials   int
	OnStateChange    func(name string, from, to State)
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenTrials:   1,
	}
}

// Breaker counts consecutive failures of a dependency. Once FailureThreshold
// is reached it opens and fails fast; after ResetTimeout it lets up to
// HalfOpenTrials calls through and closes again on the first success.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	trialsInUse int
}

// NewBreaker creates a closed breaker, filling defaults for zero values.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	defaults := defaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}
	if cfg.HalfOpenTrials <= 0 {
		cfg.HalfOpenTrials = defaults.HalfOpenTrials
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
		state:  StateClosed,
	}
}

func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn unless the breaker is open, and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		wait := b.cfg.ResetTimeout - b.now().Sub(b.openedAt)
		if wait > 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, b.name, wait)
		}
		b.trialsInUse = 1
		from := b.transition(StateHalfOpen)
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return nil
	case StateHalfOpen:
		if b.trialsInUse >= b.cfg.HalfOpenTrials {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s (trial call in flight)", ErrCircuitOpen, b.name)
		}
		b.trialsInUse++
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from, to := b.state, b.state
	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.trialsInUse = 0
			b.transition(StateClosed)
			to = StateClosed
		}
	} else {
		b.failures++
		switch {
		case b.state == StateHalfOpen,
			b.state == StateClosed && b.failures >= b.cfg.FailureThreshold:
			b.openedAt = b.now()
			b.transition(StateOpen)
			to = StateOpen
		}
	}
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
}

// transition sets the new state and returns the old one. Caller holds mu.
func (b *Breaker) transition(to State) State {
	from := b.state
	b.state = to
	switch to {
	case StateOpen:
		b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "from", from.String())
	case StateHalfOpen:
		b.logger.Info("circuit half-open, probing", "after", b.cfg.ResetTimeout)
	case StateClosed:
		b.logger.Info("circuit closed")
	}
	return from
}

func (b *Breaker) notify(from, to State) {
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.failures = 0
	b.trialsInUse = 0
	if from != StateClosed {
		b.transition(StateClosed)
	}
	b.mu.Unlock()
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}
