// Package resilience guards the agent connection: a circuit breaker that
// stops sending to an agent that keeps failing, and a retrying dial with
// exponential backoff.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/charterline/pkg/realtime"
)

// ErrCircuitOpen is returned while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cool-off has elapsed.
	StateOpen

	// StateHalfOpen lets a single probe call through.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// BreakerConfig holds the tuning knobs of a [Breaker].
type BreakerConfig struct {
	// Name labels log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// CoolOff is how long the breaker stays open before allowing a probe.
	// Default: 10s.
	CoolOff time.Duration

	// Now is the clock. Default: [time.Now].
	Now func() time.Time

	// Logger receives state transitions. Default: [slog.Default].
	Logger *slog.Logger
}

// Breaker is a three-state circuit breaker. It is safe for concurrent use.
type Breaker struct {
	name        string
	maxFailures int
	coolOff     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed [Breaker]. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CoolOff <= 0 {
		cfg.CoolOff = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		coolOff:     cfg.CoolOff,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Do runs fn unless the breaker is open. While half-open only one caller
// probes at a time; the others get [ErrCircuitOpen].
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.coolOff {
		b.state = StateHalfOpen
		b.logger.Info("circuit half-open", "name", b.name)
	}
	switch {
	case b.state == StateOpen, b.state == StateHalfOpen && b.probing:
		b.mu.Unlock()
		return ErrCircuitOpen
	case b.state == StateHalfOpen:
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		if b.state != StateClosed {
			b.logger.Info("circuit closed", "name", b.name)
		}
		b.state = StateClosed
		b.failures = 0
		return nil
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		if b.state != StateOpen {
			b.logger.Warn("circuit opened", "name", b.name, "consecutive_failures", b.failures)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
	return err
}

// State returns the current state. An open breaker whose cool-off has
// elapsed reports [StateHalfOpen].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.coolOff {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// GuardTransport wraps t so that sends go through b. Once the agent has
// failed MaxFailures sends in a row, further sends fail fast with
// [ErrCircuitOpen] until a probe succeeds.
func GuardTransport(t realtime.Transport, b *Breaker) realtime.Transport {
	return realtime.TransportFunc(func(msg []byte) error {
		return b.Do(func() error { return t.Send(msg) })
	})
}
