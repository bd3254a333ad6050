// Package ref implements the per-session ref registry (spec section 4.5):
// short, stable handles for elements discovered by a describe/snapshot
// operation, invalidated in bulk whenever the page they were taken against
// navigates.
package ref

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// Entry is one published ref, returned to callers by describe/snapshot and
// later resolved by click/fill/etc.
type Entry = wire.RefEntry

// refTable is the registry's entire state for one page generation. A new
// generation always starts from an empty table; publishing refs for the new
// page never carries over entries from the old one.
type refTable struct {
	generation uint64
	entries    map[string]Entry
}

// Registry maps ref ids to element handles, scoped to a page generation.
// Swapping in a new generation is the invalidation operation: old ref ids
// simply stop resolving, no explicit per-entry bookkeeping required.
type Registry struct {
	table atomic.Pointer[refTable]

	mu      sync.Mutex
	counter map[wire.RefCategory]uint64
}

// NewRegistry returns an empty Registry at generation 0.
func NewRegistry() *Registry {
	r := &Registry{counter: make(map[wire.RefCategory]uint64)}
	r.table.Store(&refTable{generation: 0, entries: make(map[string]Entry)})
	return r
}

// Generation returns the current page generation.
func (r *Registry) Generation() uint64 {
	return r.table.Load().generation
}

// Invalidate bumps the generation and discards every published ref. Called
// by the navigate and trace handlers after each navigation they perform.
func (r *Registry) Invalidate() {
	old := r.table.Load()
	r.mu.Lock()
	r.counter = make(map[wire.RefCategory]uint64)
	r.mu.Unlock()
	r.table.Store(&refTable{
		generation: old.generation + 1,
		entries:    make(map[string]Entry),
	})
}

// Publish assigns a new ref id for the given category within the current
// generation and stores entry under it. The returned id carries the
// category's prefix, e.g. "i3" for the fourth interactive element.
//
// Concurrent Publish/Resolve calls run on arbitrary dispatcher goroutines
// (no per-session serialization), so the table itself is never mutated in
// place: each Publish builds a new map holding the old entries plus the new
// one and swaps it in atomically, matching Invalidate's replace-the-whole-
// table approach. Readers via Resolve always see one consistent generation.
func (r *Registry) Publish(category wire.RefCategory, entry Entry) string {
	prefix, ok := wire.CategoryPrefix[category]
	if !ok {
		prefix = "c"
	}

	r.mu.Lock()
	n := r.counter[category]
	r.counter[category] = n + 1
	r.mu.Unlock()

	id := fmt.Sprintf("%s%d", prefix, n)

	for {
		old := r.table.Load()
		entry.RefID = id
		entry.PageGeneration = old.generation

		entries := make(map[string]Entry, len(old.entries)+1)
		for k, v := range old.entries {
			entries[k] = v
		}
		entries[id] = entry

		next := &refTable{generation: old.generation, entries: entries}
		if r.table.CompareAndSwap(old, next) {
			break
		}
	}
	return id
}

// Resolve looks up id within the current generation. ok is false both when
// the id was never published and when it belonged to a generation that has
// since been invalidated, matching spec section 4.5's expired-ref semantics.
func (r *Registry) Resolve(id string) (Entry, bool) {
	table := r.table.Load()
	e, ok := table.entries[id]
	return e, ok
}

// Category returns the RefCategory encoded in id's prefix.
func Category(id string) (wire.RefCategory, bool) {
	if id == "" {
		return "", false
	}
	cat, ok := wire.PrefixCategory[id[:1]]
	return cat, ok
}
