package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/charterline/pkg/realtime"
)

// Built-in provider names.
const (
	ProviderOpenAI = "openai"
	ProviderReplay = "replay"
)

// KnownProviders lists the provider names the charterline binary registers.
// Config validation warns about anything else.
var KnownProviders = []string{ProviderOpenAI, ProviderReplay}

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Agent is a live connection to the spoken agent: it accepts protocol
// messages and delivers finalized transcripts.
type Agent interface {
	realtime.Transport

	// Transcripts returns the channel of finalized transcripts. It is closed
	// when the connection ends.
	Transcripts() <-chan realtime.Transcript

	// Close releases the connection.
	Close() error
}

// AgentFactory opens an [Agent] from its configuration block.
type AgentFactory func(ctx context.Context, cfg RealtimeConfig) (Agent, error)

// Registry maps provider names to agent factories. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]AgentFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]AgentFactory)}
}

// Register registers factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory AgentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Create opens an agent using the factory registered under cfg's provider
// name. Returns [ErrProviderNotRegistered] if no factory is found.
func (r *Registry) Create(ctx context.Context, cfg RealtimeConfig) (Agent, error) {
	name := cfg.ProviderName()
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: realtime provider %q: %w", name, ErrProviderNotRegistered)
	}
	a, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: realtime provider %q: %w", name, err)
	}
	return a, nil
}
