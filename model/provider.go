package model

import (
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentplay/core"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ParseProvider maps user-facing names and aliases to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google":
		return ProviderGemini, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	default:
		return "", core.NewConfigurationError(core.UnknownProvider, "unknown model provider %q", s)
	}
}

// Registry maps providers to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Provider]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Provider]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register installs or replaces the adapter for its provider.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Provider()] = a
}

// Get resolves a provider name (aliases allowed) to its adapter.
func (r *Registry) Get(name string) (Adapter, error) {
	p, err := ParseProvider(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[p]
	if !ok {
		return nil, core.NewConfigurationError(core.UnknownProvider, "no adapter installed for provider %q", p)
	}

	return a, nil
}

// Providers lists the installed providers in name order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
