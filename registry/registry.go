// Package registry keeps the host's loaded descriptor sets, keyed by
// normalized source URL.
package registry

import (
	"sort"
	"sync"

	"github.com/kick-dev/kick-host-sdk/kick/entities"
	"github.com/kick-dev/kick-host-sdk/netutil"
)

// Registry is an in-memory descriptor-set store. A re-load of a source
// replaces its whole set atomically; there is no partial patching.
type Registry struct {
	mu   sync.RWMutex
	sets map[string][]*entities.Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sets: make(map[string][]*entities.Descriptor),
	}
}

// Store replaces the descriptor set for a source.
func (r *Registry) Store(sourceURL string, descriptors []*entities.Descriptor) {
	key := netutil.NormalizeURL(sourceURL)
	set := make([]*entities.Descriptor, len(descriptors))
	copy(set, descriptors)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[key] = set
}

// Get returns the descriptor set for a source, or false if the source has
// not been loaded.
func (r *Registry) Get(sourceURL string) ([]*entities.Descriptor, bool) {
	key := netutil.NormalizeURL(sourceURL)

	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[key]
	if !ok {
		return nil, false
	}
	out := make([]*entities.Descriptor, len(set))
	copy(out, set)
	return out, true
}

// Remove forgets a source's descriptor set.
func (r *Registry) Remove(sourceURL string) {
	key := netutil.NormalizeURL(sourceURL)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, key)
}

// Sources returns the loaded source keys in sorted order.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sets))
	for k := range r.sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every loaded descriptor ordered by position, ties by load
// order, across sources in sorted source order.
func (r *Registry) All() []*entities.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.sets))
	for k := range r.sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var all []*entities.Descriptor
	for _, k := range keys {
		all = append(all, r.sets[k]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Before(all[j])
	})
	return all
}
