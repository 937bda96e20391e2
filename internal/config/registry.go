package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	llm   map[string]func(ProviderEntry) (llm.Provider, error)
	media map[string]func(ProviderEntry) (media.Provider, error)
	live  map[string]func(ProviderEntry) (live.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:   make(map[string]func(ProviderEntry) (llm.Provider, error)),
		media: make(map[string]func(ProviderEntry) (media.Provider, error)),
		live:  make(map[string]func(ProviderEntry) (live.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterMedia registers a media provider factory under name.
func (r *Registry) RegisterMedia(name string, factory func(ProviderEntry) (media.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[name] = factory
}

// RegisterLive registers a live audio provider factory under name.
func (r *Registry) RegisterLive(name string, factory func(ProviderEntry) (live.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateMedia instantiates a media provider using the factory registered under entry.Name.
func (r *Registry) CreateMedia(entry ProviderEntry) (media.Provider, error) {
	r.mu.RLock()
	factory, ok := r.media[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: media/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLive instantiates a live audio provider using the factory registered under entry.Name.
func (r *Registry) CreateLive(entry ProviderEntry) (live.Provider, error) {
	r.mu.RLock()
	factory, ok := r.live[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
