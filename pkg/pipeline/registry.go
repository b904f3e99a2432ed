package pipeline

import (
	"sort"
	"sync"
)

// Entry is one registered pipeline: the resolved handler plus the source
// metadata kept for diagnostics.
type Entry struct {
	ID          string
	Kind        string
	Description string
	SourcePath  string
	Handler     Handler
}

// Registry maps pipeline ids to entries. It is rebuilt wholesale by a scan
// and read concurrently by in-flight dispatches: Replace swaps the whole map
// under the write lock, so readers observe either the previous complete
// registry or the new one, never a partial rebuild.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Lookup returns the entry registered under id. Matching is exact and
// case-sensitive; a miss is the only not-found signal.
func (r *Registry) Lookup(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// IDs returns all registered ids sorted ascending.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Replace swaps the registry contents with the given entries. The registry
// takes ownership of the map; callers must not mutate it afterwards.
func (r *Registry) Replace(entries map[string]*Entry) {
	if entries == nil {
		entries = make(map[string]*Entry)
	}
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
}
