// Package resilience provides the error taxonomy, retry, and circuit breaker
// machinery shared by the external service clients and the job state machine.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of a Breaker.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests immediately.
	CircuitOpen
	// CircuitHalfOpen lets a single probe through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected without being attempted.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing a
	// probe. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count as failures. Nil counts every
	// non-nil error.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions, typically for logging.
	OnStateChange func(from, to CircuitState)
}

// DefaultBreakerConfig returns the standard breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker is a circuit breaker guarding one external service. A probe
// succeeding in half-open closes the circuit; a probe failing reopens it.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time

	now func() time.Time // injectable for tests
}

// NewBreaker creates a Breaker, filling zero-valued config with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: CircuitClosed, now: time.Now}
}

// Do runs fn through the breaker, returning ErrCircuitOpen without calling fn
// when the circuit is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// Guard is Do for functions that return a value.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state, accounting for an elapsed reset timeout.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return b.state
}

// Reset forces the circuit closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != CircuitClosed {
		b.transition(CircuitClosed)
	}
	b.failures = 0
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
			b.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trips := err != nil
	if b.cfg.ShouldTrip != nil {
		trips = trips && b.cfg.ShouldTrip(err)
	}

	if !trips {
		if b.state == CircuitHalfOpen {
			b.transition(CircuitClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.now()
	switch b.state {
	case CircuitClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transition(CircuitOpen)
	}
}

func (b *Breaker) transition(to CircuitState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// BreakerSet holds one Breaker per external service, created lazily with a
// shared config.
type BreakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewBreakerSet creates an empty registry.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{breakers: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for service, creating it on first use.
func (s *BreakerSet) Get(service string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[service]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[service]; ok {
		return b
	}
	b = NewBreaker(s.cfg)
	s.breakers[service] = b
	return b
}

// States snapshots all breaker states keyed by service name.
func (s *BreakerSet) States() map[string]CircuitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CircuitState, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}
