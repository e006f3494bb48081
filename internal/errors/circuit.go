package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while a breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a circuit breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen lets a single probe call through after the cooldown.
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

// BreakerConfig tunes a CircuitBreaker. Zero values take the defaults.
type BreakerConfig struct {
	// Failures is the run of consecutive counted failures that opens the
	// circuit. Default 5.
	Failures int
	// Cooldown is how long the circuit stays open before a probe. Default 30s.
	Cooldown time.Duration
	// Counts reports whether err counts against the breaker. Nil counts
	// every error.
	Counts func(error) bool
	// OnChange observes transitions. It runs outside the breaker's lock.
	OnChange func(name string, from, to State)
	// Now is the clock. Default time.Now.
	Now func() time.Time
}

// CircuitBreaker fails calls fast while a dependency keeps failing. The
// credential broker wraps token service fetches in one.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{name: name, cfg: cfg}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// State reports the position a call would see now.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effective()
}

// Failures is the current run of counted failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := CircuitExecute(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// CircuitExecute runs fn through cb and returns its value.
func CircuitExecute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	probe, err := cb.admit()
	if err != nil {
		return zero, err
	}
	v, err := fn()
	cb.settle(probe, err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// effective must be called with mu held.
func (cb *CircuitBreaker) effective() State {
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	var from, to State
	switch cb.effective() {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.probing {
			err = ErrCircuitOpen
			break
		}
		cb.probing, probe = true, true
		from, to = cb.move(StateHalfOpen)
	}
	cb.mu.Unlock()
	cb.notify(from, to)
	return probe, err
}

func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	if probe {
		cb.probing = false
	}
	var from, to State
	switch {
	case err == nil:
		cb.failures = 0
		from, to = cb.move(StateClosed)
	case cb.cfg.Counts != nil && !cb.cfg.Counts(err):
	default:
		cb.failures++
		if probe || cb.failures >= cb.cfg.Failures {
			cb.openedAt = cb.cfg.Now()
			from, to = cb.move(StateOpen)
		}
	}
	cb.mu.Unlock()
	cb.notify(from, to)
}

// move must be called with mu held. It returns from == to when nothing changed.
func (cb *CircuitBreaker) move(to State) (State, State) {
	from := cb.state
	cb.state = to
	return from, to
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnChange != nil {
		cb.cfg.OnChange(cb.name, from, to)
	}
}
