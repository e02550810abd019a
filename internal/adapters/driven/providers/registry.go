package providers

import (
	"sync"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// Registry maps provider types to their OAuth implementations.
// Providers are registered at startup; lookups happen on every flow.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.ProviderType]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[domain.ProviderType]Provider),
	}
}

// Register adds a provider, replacing any existing registration
// for the same type
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Type()] = p
}

// Get returns the provider for a type, or nil if not registered
func (r *Registry) Get(providerType domain.ProviderType) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[providerType]
}

// Types returns all registered provider types
func (r *Registry) Types() []domain.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.ProviderType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	return types
}

// Infos returns metadata for all registered providers
func (r *Registry) Infos() []domain.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]domain.ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, domain.ProviderInfo{
			Type:      p.Type(),
			Name:      p.Name(),
			Available: true,
		})
	}
	return infos
}
