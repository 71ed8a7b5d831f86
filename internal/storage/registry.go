package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"emojidb/internal/common/errors"
)

// Registry maps a DATABASE_TYPE value to the factory of its mirror backend.
// Backends add themselves from init, so a binary only offers the adapters it
// imports.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]StorageFactory
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]StorageFactory)}
}

// Register adds a backend under name. Registering a name twice panics, since
// two adapters claiming one DATABASE_TYPE is a wiring bug.
func (r *Registry) Register(name string, factory StorageFactory) {
	if factory == nil {
		panic("storage: Register factory is nil for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.backends[name]; dup {
		panic("storage: Register called twice for " + name)
	}
	r.backends[name] = factory
}

// Open validates config and opens the named backend
func (r *Registry) Open(name string, config StorageConfig) (RecordStore, error) {
	r.mu.RLock()
	factory, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("storage backend %q not registered (available: %s)",
			name, strings.Join(r.Backends(), ", ")))
	}

	if config.GetType() != name {
		return nil, errors.ConfigError(fmt.Sprintf("storage config of type %q given to backend %q", config.GetType(), name))
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s storage config: %v", name, err))
	}
	return factory.Create(config)
}

// Backends lists the registered names, sorted
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[name]
	return ok
}

var backends = NewRegistry()

// Register adds a backend to the process-wide registry
func Register(name string, factory StorageFactory) {
	backends.Register(name, factory)
}

// Open opens a backend from the process-wide registry
func Open(name string, config StorageConfig) (RecordStore, error) {
	return backends.Open(name, config)
}

// Backends lists the backends linked into this binary
func Backends() []string {
	return backends.Backends()
}
