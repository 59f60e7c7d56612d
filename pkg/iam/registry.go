package iam

import (
	"net/http"
	"sort"
	"sync"

	"github.com/idfort/idfort/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnknownEntry   = ErrRegistry.Register("UNKNOWN_ENTRY", errx.TypeNotFound, http.StatusNotFound, "Unknown registry entry")
	CodeDuplicateEntry = ErrRegistry.Register("DUPLICATE_ENTRY", errx.TypeConflict, http.StatusConflict, "Registry entry already exists")
)

// Registry is a process-wide, name-keyed extension point. Contributing
// modules register their handlers explicitly at startup; there is no
// compile-time exhaustiveness and no implicit discovery. Lookups for keys
// nobody registered fail closed.
type Registry[T any] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]T
}

// NewNamedRegistry creates an empty registry. The name only shows up in
// violations and logs.
func NewNamedRegistry[T any](name string) *Registry[T] {
	return &Registry[T]{
		name:    name,
		entries: make(map[string]T),
	}
}

// Register binds key to entry. Re-registering an existing key is a wiring
// defect and is rejected.
func (r *Registry[T]) Register(key string, entry T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return ErrRegistry.New(CodeDuplicateEntry).
			WithDetail("registry", r.name).
			WithDetail("key", key)
	}
	r.entries[key] = entry
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate means the
// process is misassembled.
func (r *Registry[T]) MustRegister(key string, entry T) {
	if err := r.Register(key, entry); err != nil {
		panic(err.Error())
	}
}

// Lookup resolves key, failing closed on unknown keys.
func (r *Registry[T]) Lookup(key string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[key]
	if !exists {
		var zero T
		return zero, ErrRegistry.New(CodeUnknownEntry).
			WithDetail("registry", r.name).
			WithDetail("key", key)
	}
	return entry, nil
}

// Names returns the registered keys, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
