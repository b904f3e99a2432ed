package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kinds is the compile-time table of handler kinds. Builtin packages
// register their constructors here from the composition root; the scanner
// resolves manifest `handler` fields against it. Registration happens before
// serving starts, lookups happen concurrently afterward.
type Kinds struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewKinds() *Kinds {
	return &Kinds{factories: make(map[string]Factory)}
}

// Register binds a kind name to a factory. Duplicate names are an error so
// a wiring mistake surfaces at startup instead of silently shadowing a kind.
func (k *Kinds) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("handler kind name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("handler kind %q: factory cannot be nil", name)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrKindRegistered, name)
	}
	k.factories[name] = factory
	return nil
}

// MustRegister is Register for static wiring that cannot legitimately fail.
func (k *Kinds) MustRegister(name string, factory Factory) {
	if err := k.Register(name, factory); err != nil {
		panic(err)
	}
}

func (k *Kinds) Lookup(name string) (Factory, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	factory, ok := k.factories[name]
	return factory, ok
}

// Names returns the registered kind names sorted ascending.
func (k *Kinds) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.factories))
	for name := range k.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
