package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/charterline/internal/config"
	"github.com/MrWong99/charterline/pkg/realtime"
)

type stubAgent struct {
	cfg config.RealtimeConfig
	ch  chan realtime.Transcript
}

func (s *stubAgent) Send([]byte) error                      { return nil }
func (s *stubAgent) Transcripts() <-chan realtime.Transcript { return s.ch }
func (s *stubAgent) Close() error                           { return nil }

func TestRegistry_Create(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.Register("stub", func(_ context.Context, cfg config.RealtimeConfig) (config.Agent, error) {
		return &stubAgent{cfg: cfg}, nil
	})

	a, err := r.Create(context.Background(), config.RealtimeConfig{Provider: "stub", Model: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := a.(*stubAgent).cfg.Model; got != "m1" {
		t.Errorf("factory got model %q, want m1", got)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.Create(context.Background(), config.RealtimeConfig{})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("want ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := config.NewRegistry()
	r.Register("openai", func(context.Context, config.RealtimeConfig) (config.Agent, error) {
		return nil, boom
	})
	_, err := r.Create(context.Background(), config.RealtimeConfig{})
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped factory error, got %v", err)
	}
}

func TestRegistry_NamesAndOverwrite(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	first := func(context.Context, config.RealtimeConfig) (config.Agent, error) { return nil, errors.New("first") }
	second := func(_ context.Context, cfg config.RealtimeConfig) (config.Agent, error) { return &stubAgent{cfg: cfg}, nil }
	r.Register("replay", first)
	r.Register("openai", first)
	r.Register("replay", second)

	if got := r.Names(); !slices.Equal(got, []string{"openai", "replay"}) {
		t.Errorf("Names() = %v", got)
	}
	if _, err := r.Create(context.Background(), config.RealtimeConfig{Provider: "replay"}); err != nil {
		t.Errorf("overwritten factory should be used, got %v", err)
	}
}
