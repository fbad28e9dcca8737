package sdk

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered actions grouped by plugin and resolves
// lookups by (plugin, action) name. Plugin names are separator-normalized
// on both registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Action)}
}

// Register adds an action under its plugin, rejecting duplicates.
func (r *Registry) Register(a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions, ok := r.plugins[a.plugin]
	if !ok {
		actions = make(map[string]*Action)
		r.plugins[a.plugin] = actions
	}
	if _, ok := actions[a.id]; ok {
		return fmt.Errorf("action %s is already registered", a.Ref())
	}
	actions[a.id] = a
	return nil
}

// Lookup returns the action registered under (plugin, action).
func (r *Registry) Lookup(plugin, action string) (*Action, error) {
	plugin = normalizePlugin(plugin)

	r.mu.RLock()
	defer r.mu.RUnlock()

	actions, ok := r.plugins[plugin]
	if !ok {
		return nil, fmt.Errorf("a plugin named %q could not be found", plugin)
	}
	a, ok := actions[action]
	if !ok {
		return nil, fmt.Errorf("an action named %q was not found for plugin %q", action, plugin)
	}
	return a, nil
}

// Resolve rebuilds an action from its transfer descriptor. The action
// must already be registered in this process; descriptors carry identity,
// never code.
func (r *Registry) Resolve(d Descriptor) (*Action, error) {
	if d.Version != descriptorVersion {
		return nil, fmt.Errorf("unsupported action descriptor version %d", d.Version)
	}
	a, err := r.Lookup(d.Plugin, d.ID)
	if err != nil {
		return nil, err
	}
	if a.kind != d.Kind {
		return nil, fmt.Errorf("descriptor kind %q does not match registered kind %q for %s",
			d.Kind, a.kind, a.Ref())
	}
	return a, nil
}

// Plugins returns the registered plugin names, sorted for stable output.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
