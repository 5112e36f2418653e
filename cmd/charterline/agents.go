package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MrWong99/charterline/internal/config"
	"github.com/MrWong99/charterline/internal/health"
	"github.com/MrWong99/charterline/internal/observe"
	"github.com/MrWong99/charterline/internal/replay"
	"github.com/MrWong99/charterline/internal/resilience"
	"github.com/MrWong99/charterline/internal/voice/session"
	"github.com/MrWong99/charterline/pkg/realtime"
)

// registerBuiltinAgents wires the agent factories shipped with charterline
// into reg.
func registerBuiltinAgents(reg *config.Registry) {
	reg.Register(config.ProviderOpenAI, func(ctx context.Context, rc config.RealtimeConfig) (config.Agent, error) {
		key := rc.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, errors.New("no API key; set realtime.api_key or OPENAI_API_KEY")
		}
		opts := []realtime.Option{
			realtime.WithErrorHandler(func(err error) {
				slog.Warn("realtime agent error", "err", err)
			}),
		}
		if rc.Model != "" {
			opts = append(opts, realtime.WithModel(rc.Model))
		}
		if rc.URL != "" {
			opts = append(opts, realtime.WithBaseURL(rc.URL))
		}
		c, err := resilience.Retry(ctx, resilience.RetryConfig{
			Name:     "realtime dial",
			Attempts: rc.DialAttempts,
		}, func(ctx context.Context) (*realtime.Client, error) {
			return realtime.Dial(ctx, key, opts...)
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	})

	reg.Register(config.ProviderReplay, func(ctx context.Context, rc config.RealtimeConfig) (config.Agent, error) {
		var src io.Reader = os.Stdin
		if rc.URL != "-" {
			f, err := os.Open(rc.URL)
			if err != nil {
				return nil, fmt.Errorf("open transcript: %w", err)
			}
			src = f
		}
		return replay.Open(ctx, src,
			replay.WithPace(rc.Pace),
			replay.WithLogger(slog.Default().With("component", "replay")),
		), nil
	})
}

// connected is implemented by agents that can report link status.
type connected interface {
	Connected() bool
}

// newStatusServer builds the HTTP server for probes, session status and
// Prometheus metrics.
func newStatusServer(addr string, ctrl *session.Controller, agent config.Agent, breaker *resilience.Breaker, p *observe.Provider, m *observe.Metrics, logger *slog.Logger) *http.Server {
	h := health.New(
		health.WithChecker(
			health.Checker{Name: "transport", Check: func(context.Context) error {
				if c, ok := agent.(connected); ok && !c.Connected() {
					return errors.New("agent disconnected")
				}
				if s := breaker.State(); s == resilience.StateOpen {
					return fmt.Errorf("send circuit %s", s)
				}
				return nil
			}},
			health.Checker{Name: "session", Check: func(context.Context) error {
				if !ctrl.Ready() {
					return errors.New("session not initialised")
				}
				return nil
			}},
		),
		health.WithStatus(func() any { return ctrl.State() }),
	)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", p.MetricsHandler())

	mw := observe.Middleware(m,
		observe.WithRequestLogger(logger),
		observe.WithQuietPaths("/healthz", "/readyz", "/metrics"),
	)
	return &http.Server{
		Addr:              addr,
		Handler:           mw(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
