// Package provider resolves part queries through an ordered chain of sources.
package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// Provider is one stage of the resolve chain.
type Provider interface {
	// Name returns the provider identifier used in configuration and as
	// the cache key component of results it produces.
	Name() string
	// Fetch resolves entries of b that are still unresolved. It must not
	// touch resolved entries. Side-channel signals are written to status.
	// The returned count is the number of entries served from cache.
	Fetch(ctx context.Context, b *Batch, status model.ProviderStatus) (int, error)
}

// PartCache is the part of the store providers read from and write to.
type PartCache interface {
	GetCachedPart(ctx context.Context, mpn, manufacturer string, maxAge time.Duration) (*model.PartResult, error)
	SetCachedPart(ctx context.Context, provider string, part model.PartResult) error
}

// Registry manages available providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing any provider of the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain builds a chain running the named providers in the given order.
func (r *Registry) Chain(names []string) (*Chain, error) {
	if len(names) == 0 {
		return nil, eris.New("provider: empty chain")
	}
	ps := make([]Provider, 0, len(names))
	for _, name := range names {
		p := r.Get(name)
		if p == nil {
			return nil, eris.Errorf("provider: unknown provider %q", name)
		}
		ps = append(ps, p)
	}
	return NewChain(ps...), nil
}
