// Package strategy provides a process-wide registry of named strategy
// factories. Configuration files reference strategies by stable string name
// (for example "filter.expr" or "token.simple"); the settings accessors in
// pkg/mock resolve those names here and type-assert the result to the
// capability they need.
package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a new strategy instance. Factories must be safe to
// call concurrently.
type Factory func() any

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a strategy available under the given name, replacing any
// previous registration. Registering a nil factory or an empty name panics:
// both are programmer errors.
func Register(name string, factory Factory) {
	if name == "" {
		panic("strategy: register with empty name")
	}
	if factory == nil {
		panic("strategy: register nil factory for " + name)
	}
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New instantiates the strategy registered under name. Unknown names return
// an error; callers decide whether that is fatal (it never is for settings
// resolution).
func New(name string) (any, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy: unknown name %q", name)
	}
	return factory(), nil
}

// Names returns the sorted names of all registered strategies.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
