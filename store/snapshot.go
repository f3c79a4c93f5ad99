package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ontolink/ontolink/dsl"
)

// MacroSet is an immutable, fully parsed view of the macro registry. It
// implements dsl.Snapshot: lookup prefers the family-scoped macro and falls
// back to the global one. Once built, a MacroSet is never modified, so any
// number of concurrent validations may read it without locking.
type MacroSet struct {
	entries map[macroKey]dsl.Node
}

// BuildMacroSet parses every macro body into a tree. A body that no longer
// parses is an administrative-path bug; it fails the build rather than
// silently vanishing from lookups.
func BuildMacroSet(macros []*Macro) (*MacroSet, error) {
	entries := make(map[macroKey]dsl.Node, len(macros))
	for _, m := range macros {
		node, errs := dsl.ParseExpression(m.Body)
		if len(errs) > 0 {
			return nil, fmt.Errorf("macro %s (scope %q) has an unparseable body: %s", m.Name, scopeLabel(m.FamilyID), errs[0].Message)
		}
		entries[macroKey{m.FamilyID, m.Name}] = node
	}
	return &MacroSet{entries: entries}, nil
}

func (s *MacroSet) Lookup(familyID, name string) (dsl.Node, bool) {
	if familyID != "" {
		if node, ok := s.entries[macroKey{familyID, name}]; ok {
			return node, true
		}
	}
	node, ok := s.entries[macroKey{"", name}]
	return node, ok
}

// Len returns the number of macros in the set.
func (s *MacroSet) Len() int { return len(s.entries) }

// SnapshotCacheConfig controls snapshot staleness.
type SnapshotCacheConfig struct {
	// TTL is how long a published snapshot stays fresh. 0 disables
	// time-based expiry; the cache then refreshes only on Invalidate.
	TTL time.Duration
}

// DefaultSnapshotCacheConfig expires snapshots only on explicit invalidation,
// since every macro write goes through this process.
func DefaultSnapshotCacheConfig() SnapshotCacheConfig {
	return SnapshotCacheConfig{TTL: 0}
}

type snapshotEntry struct {
	set      *MacroSet
	loadedAt time.Time
}

// SnapshotCache loads macros from a MacroStore and publishes them as
// atomically swapped MacroSets. Readers always get a complete set, possibly
// a stale one for a moment after a write, never a torn one. It implements
// dsl.SnapshotProvider.
type SnapshotCache struct {
	store   MacroStore
	config  SnapshotCacheConfig
	current atomic.Pointer[snapshotEntry]
	mu      sync.Mutex // serializes reloads
}

func NewSnapshotCache(store MacroStore, config SnapshotCacheConfig) *SnapshotCache {
	return &SnapshotCache{store: store, config: config}
}

// Macros returns the current snapshot, reloading first when none is
// published or the TTL has lapsed. If a reload fails the previous snapshot
// keeps serving; with nothing published at all, an empty snapshot is
// returned so validation degrades to "macro not found" instead of failing.
func (c *SnapshotCache) Macros() dsl.Snapshot {
	entry := c.current.Load()
	if entry != nil && !c.expired(entry) {
		return entry.set
	}
	set, err := c.refresh()
	if err != nil {
		if entry != nil {
			return entry.set
		}
		return dsl.EmptySnapshot
	}
	return set
}

// Refresh rebuilds the snapshot from the store and publishes it.
func (c *SnapshotCache) Refresh() error {
	_, err := c.refresh()
	return err
}

func (c *SnapshotCache) refresh() (*MacroSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	macros, err := c.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing macros: %w", err)
	}
	set, err := BuildMacroSet(macros)
	if err != nil {
		return nil, fmt.Errorf("building macro snapshot: %w", err)
	}
	c.current.Store(&snapshotEntry{set: set, loadedAt: time.Now()})
	return set, nil
}

// Invalidate drops the published snapshot; the next Macros call reloads.
// Called after every macro create/delete.
func (c *SnapshotCache) Invalidate() {
	c.current.Store(nil)
}

func (c *SnapshotCache) expired(entry *snapshotEntry) bool {
	return c.config.TTL > 0 && time.Since(entry.loadedAt) > c.config.TTL
}
