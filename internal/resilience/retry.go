package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default retry parameters.
const (
	defaultAttempts   = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// RetryConfig configures [Retry].
type RetryConfig struct {
	// Name labels log messages.
	Name string

	// Attempts is the total number of tries. Default: 3.
	Attempts int

	// Backoff is the wait after the first failure; it doubles on every
	// further failure up to MaxBackoff. Default: 500ms.
	Backoff time.Duration

	// MaxBackoff caps the wait between attempts. Default: 10s.
	MaxBackoff time.Duration

	// Logger receives retry messages. Default: [slog.Default].
	Logger *slog.Logger
}

// Retry calls fn until it succeeds, the attempts are exhausted or ctx is
// cancelled. The last error is returned, wrapped with the attempt count.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var zero T
	wait := cfg.Backoff
	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt == cfg.Attempts {
			break
		}
		cfg.Logger.Warn("attempt failed; retrying",
			"name", cfg.Name,
			"attempt", attempt,
			"max_attempts", cfg.Attempts,
			"backoff", wait,
			"err", err,
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, fmt.Errorf("resilience: %s: %w", cfg.Name, ctx.Err())
		case <-t.C:
		}
		wait = min(wait*2, cfg.MaxBackoff)
	}
	return zero, fmt.Errorf("resilience: %s: %d attempts failed: %w", cfg.Name, cfg.Attempts, err)
}
