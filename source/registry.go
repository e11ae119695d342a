package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prilive-com/tradekit/market"
)

// Factory constructs a DataSource of one kind from configuration.
type Factory func(cfg Config) (DataSource, error)

// Registry maps stable kind keys to source constructors. It is populated at
// startup and looked up by key; there is no reflection-based dispatch.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a kind key to a factory. Registering an existing key
// replaces the previous factory.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// New constructs a source of the given kind.
func (r *Registry) New(kind string, cfg Config) (DataSource, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: kind %q (available: %v)", market.ErrUnknownSource, kind, r.Kinds())
	}
	return f(cfg)
}

// Kinds returns the registered kind keys, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
