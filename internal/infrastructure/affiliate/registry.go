package affiliate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/source"
)

// PluginFactory builds a fresh plugin instance. Plugins hold per-source state
// after Initialize, so the registry hands out a new instance per resolution
// rather than sharing one across concurrent syncs.
type PluginFactory func() source.Plugin

// Registry manages affiliate network plugin registrations
type Registry struct {
	mu        sync.RWMutex
	factories map[string]PluginFactory
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]PluginFactory),
	}
}

// Register adds a plugin factory under its slug. Registering the same slug
// twice is a wiring error and is rejected.
func (r *Registry) Register(factory PluginFactory) error {
	plugin := factory()
	slug := plugin.Slug()
	if slug == "" {
		return shared.NewDomainError("INVALID_PLUGIN", "Plugin slug cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[slug]; exists {
		return fmt.Errorf("%w: plugin '%s' already registered", shared.ErrAlreadyExists, slug)
	}
	r.factories[slug] = factory
	return nil
}

// Resolve returns a fresh plugin instance for a slug
func (r *Registry) Resolve(slug string) (source.Plugin, error) {
	r.mu.RLock()
	factory, exists := r.factories[slug]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: '%s'", shared.ErrPluginNotRegistered, slug)
	}
	return factory(), nil
}

// List returns all registered plugin slugs, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs := make([]string, 0, len(r.factories))
	for slug := range r.factories {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
