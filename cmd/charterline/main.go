// Command charterline runs a voice-driven charter capture session against a
// realtime speech agent, or replays a recorded transcript offline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/charterline/internal/config"
	"github.com/MrWong99/charterline/internal/observe"
	"github.com/MrWong99/charterline/internal/resilience"
	"github.com/MrWong99/charterline/internal/voice/capture"
	"github.com/MrWong99/charterline/internal/voice/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	schemaPath := flag.String("schema", "", "path to the field schema YAML (overrides schema_path)")
	replayPath := flag.String("replay", "", `replay a transcript file instead of dialling the agent ("-" for stdin)`)
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "charterline: %v\n", err)
			return 1
		}
	}
	applyFlags(cfg, *schemaPath, *replayPath)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "charterline: %v\n", err)
		return 1
	}
	if cfg.SchemaPath == "" {
		fmt.Fprintln(os.Stderr, "charterline: no field schema; pass -schema or set schema_path")
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := newLogger(cfg.Server.LogFormat, &level)
	slog.SetDefault(logger)

	schema, err := config.LoadSchema(cfg.SchemaPath)
	if err != nil {
		slog.Error("failed to load schema", "err", err)
		return 1
	}

	slog.Info("charterline starting",
		"config", *configPath,
		"schema", cfg.SchemaPath,
		"fields", len(schema),
		"provider", cfg.Realtime.ProviderName(),
		"listen_addr", cfg.Server.ListenAddr,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Agent connection ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinAgents(reg)

	agent, err := reg.Create(ctx, cfg.Realtime)
	if err != nil {
		slog.Error("failed to connect agent", "err", err)
		return 1
	}
	defer agent.Close()

	// ── Session ───────────────────────────────────────────────────────────────
	conv := capture.NewMemConversation(nil)
	draft := capture.NewMemDraft()
	ctrl := session.New(
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithSettings(cfg.Session.Settings()),
		session.WithCooldown(cfg.Session.Cooldown()),
		session.WithStores(conv, draft),
	)
	defer ctrl.Destroy()
	ctrl.Subscribe(logEvents(logger))

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "agent send", Logger: logger})
	if !ctrl.Initialize(schema, resilience.GuardTransport(agent, breaker), nil) {
		slog.Error("failed to initialise session", "err", ctrl.State().Error)
		return 1
	}
	ctrl.Start()

	g, gctx := errgroup.WithContext(ctx)

	// ── Transcript pump ───────────────────────────────────────────────────────
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case t, ok := <-agent.Transcripts():
				if !ok {
					slog.Info("transcript stream ended")
					stop()
					return nil
				}
				slog.Debug("transcript", "speaker", t.Speaker, "text", t.Text)
				ctrl.ProcessTranscript(t.Text)
			}
		}
	})

	// ── Status server ─────────────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		srv := newStatusServer(cfg.Server.ListenAddr, ctrl, agent, breaker, provider, metrics, logger)
		g.Go(func() error {
			slog.Info("status server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
			applyReload(config.Diff(old, next), ctrl, &level)
		}, config.WithWatcherLogger(logger))
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	slog.Info("session ready; press Ctrl+C to finish")

	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Result ────────────────────────────────────────────────────────────────
	state := ctrl.State()
	slog.Info("session finished", "step", state.Step, "captured", state.Captured.Len())
	if err := writeDraft(os.Stdout, draft.Draft()); err != nil {
		slog.Error("failed to write draft", "err", err)
		return 1
	}
	return 0
}

// applyFlags lets command-line flags override the loaded configuration.
func applyFlags(cfg *config.Config, schemaPath, replayPath string) {
	if schemaPath != "" {
		cfg.SchemaPath = schemaPath
	}
	if replayPath != "" {
		cfg.Realtime.Provider = config.ProviderReplay
		cfg.Realtime.URL = replayPath
	}
}

// applyReload applies the hot-reloadable parts of a config change.
func applyReload(d config.ConfigDiff, ctrl *session.Controller, level *slog.LevelVar) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CooldownChanged {
		ctrl.SetCooldown(d.NewCooldown)
		slog.Info("echo cooldown changed", "cooldown", d.NewCooldown)
	}
	if d.RestartRequired() {
		slog.Warn("config change requires a restart to take effect",
			"session", d.SessionChanged,
			"realtime", d.RealtimeChanged,
			"schema_path", d.SchemaPathChanged,
		)
	}
}

func logEvents(logger *slog.Logger) session.Listener {
	return func(e session.Event) {
		switch e.Type {
		case session.EventFieldCaptured, session.EventExternalEdit:
			if e.Field != nil {
				logger.Info("field "+string(e.Type), "field", e.Field.FieldID, "value", e.Field.Value)
			}
		case session.EventCompleted:
			logger.Info("session completed", "captured", e.State.Captured.Len())
		default:
			logger.Debug("session state", "step", e.State.Step, "field", e.State.CurrentFieldID)
		}
	}
}

func writeDraft(w io.Writer, draft map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(draft)
}

// newLogger builds the process logger for the configured format.
func newLogger(format config.LogFormat, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
