package resource

import (
	"errors"
	"sync"
)

// Registry holds the resource definitions of an application, keyed by name.
// It replaces a process-wide table: pass it to whatever needs type lookup.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Definition),
	}
}

// Define registers a resource type backed by engine.
func (r *Registry) Define(name string, engine Engine, props ...Property) (*Definition, error) {
	if name == "" {
		return nil, &Error{Kind: KindConfig, Err: errors.New("resourceful: resource name is empty")}
	}
	if engine == nil {
		return nil, &Error{Kind: KindConfig, Resource: name, Err: errors.New("resourceful: engine is nil")}
	}
	def, err := newDefinition(name, engine, props)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Resource: name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		return nil, &Error{Kind: KindConfig, Resource: name, Err: ErrDuplicateResource}
	}
	r.defs[name] = def
	r.order = append(r.order, name)
	return def, nil
}

// MustDefine panics on registration error; intended for bootstrap code paths.
func (r *Registry) MustDefine(name string, engine Engine, props ...Property) *Definition {
	def, err := r.Define(name, engine, props...)
	if err != nil {
		panic(err)
	}
	return def
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered resource names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
