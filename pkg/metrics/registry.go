package metrics

import (
	"sort"
	"sync"
)

// Registry maps logical connector names to the statistics of the listener
// currently serving them. Only active listeners are present.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]ConnectorStatistics
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]ConnectorStatistics)}
}

// Register adds or replaces the entry for stats.Name().
func (r *Registry) Register(stats ConnectorStatistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[stats.Name()] = stats
}

// Unregister removes name. It reports whether an entry existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	delete(r.entries, name)
	return ok
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (ConnectorStatistics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.entries[name]
	return s, ok
}

// Len returns the number of active entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of the map. Mutating it does not affect the
// registry.
func (r *Registry) Entries() map[string]ConnectorStatistics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ConnectorStatistics, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Names returns the registered connector names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshots returns the counters of every entry, ordered by name.
func (r *Registry) Snapshots() []Snapshot {
	entries := r.Entries()
	out := make([]Snapshot, 0, len(entries))
	for _, name := range r.Names() {
		if s, ok := entries[name]; ok {
			out = append(out, s.Snapshot())
		}
	}
	return out
}
