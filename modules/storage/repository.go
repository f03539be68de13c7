// Package storage implements the in-memory repository service and the
// store, retrieve and publish actions on top of it. Every write notifies
// the bus under the repository's event namespace, which is what fires
// Observer feature sets.
package storage

import (
	"context"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/bus"
)

// ServiceName is the key the repository registers under in the App's
// service table.
const ServiceName = "repository"

// Repository is a keyed in-memory store partitioned by repository name.
// All methods are safe for concurrent use.
type Repository struct {
	b  *bus.Bus
	mu sync.RWMutex
	// repos[name][key] plus insertion order per repository, so All is
	// deterministic.
	repos map[string]map[string]cty.Value
	order map[string][]string
}

// NewRepository creates an empty repository service notifying on b.
func NewRepository(b *bus.Bus) *Repository {
	return &Repository{
		b:     b,
		repos: map[string]map[string]cty.Value{},
		order: map[string][]string{},
	}
}

// Put writes one entry and notifies the repository's observers. The event
// payload carries the repository name, the key and the new value.
func (r *Repository) Put(ctx context.Context, repo, key string, v cty.Value) error {
	r.mu.Lock()
	entries, ok := r.repos[repo]
	if !ok {
		entries = map[string]cty.Value{}
		r.repos[repo] = entries
	}
	if _, exists := entries[key]; !exists {
		r.order[repo] = append(r.order[repo], key)
	}
	entries[key] = v
	r.mu.Unlock()

	return r.b.Emit(ctx, bus.Event{
		Type: bus.RepoEvent(repo),
		Data: cty.ObjectVal(map[string]cty.Value{
			"repository": cty.StringVal(repo),
			"key":        cty.StringVal(key),
			"value":      v,
		}),
	})
}

// Get reads one entry.
func (r *Repository) Get(repo, key string) (cty.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.repos[repo][key]
	return v, ok
}

// All returns every value in the repository, in insertion order.
func (r *Repository) All(repo string) cty.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.order[repo]
	if len(keys) == 0 {
		return cty.EmptyTupleVal
	}
	out := make([]cty.Value, len(keys))
	for i, k := range keys {
		out[i] = r.repos[repo][k]
	}
	return cty.TupleVal(out)
}

// Len returns the number of entries in the repository.
func (r *Repository) Len(repo string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.repos[repo])
}
