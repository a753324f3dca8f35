package persistence

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dshills/embedbridge/core"
)

// Creator builds a persistence instance for a configuration
type Creator interface {
	CreatePersistence(config PersistenceConfig) (core.Persistence, error)
}

// Registry shares one open persistence instance per storage location within
// the process. Bolt and badger lock their files, so every handle opened on
// the same path must go through the same instance.
type Registry struct {
	mu      sync.Mutex
	creator Creator
	entries map[string]*registryEntry
}

type registryEntry struct {
	persistence core.Persistence
	refs        int
}

// NewRegistry creates a registry that opens new instances with creator
func NewRegistry(creator Creator) *Registry {
	return &Registry{
		creator: creator,
		entries: make(map[string]*registryEntry),
	}
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(NewDefaultFactory(nil))
	})
	return defaultRegistry
}

func registryKey(config PersistenceConfig) (string, error) {
	path, err := filepath.Abs(config.Path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage path %q: %w", config.Path, err)
	}
	return string(config.Type) + ":" + path, nil
}

// Acquire returns a reference to the persistence instance for config,
// opening it if this is the first reference. Closing the returned value
// releases the reference; the instance closes with its last reference.
func (r *Registry) Acquire(config PersistenceConfig) (core.Persistence, error) {
	key, err := registryKey(config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		p, err := r.creator.CreatePersistence(config)
		if err != nil {
			return nil, err
		}
		entry = &registryEntry{persistence: p}
		r.entries[key] = entry
	}
	entry.refs++

	return &SharedPersistence{Persistence: entry.persistence, registry: r, key: key}, nil
}

// Refs returns the number of live references for config
func (r *Registry) Refs(config PersistenceConfig) int {
	key, err := registryKey(config)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		return entry.refs
	}
	return 0
}

func (r *Registry) release(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil
	}
	entry.refs--
	if entry.refs > 0 {
		return nil
	}
	delete(r.entries, key)
	return entry.persistence.Close()
}

// SharedPersistence is one reference to a registry-managed instance
type SharedPersistence struct {
	core.Persistence
	registry  *Registry
	key       string
	closeOnce sync.Once
	closeErr  error
}

// Close releases this reference
func (s *SharedPersistence) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.registry.release(s.key)
	})
	return s.closeErr
}
