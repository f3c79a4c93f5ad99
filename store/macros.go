package store

import (
	"fmt"
	"sync"
	"time"
)

// MacroStore manages the macro registry. Writes happen only on the
// administrative path; the validation path reads macros exclusively through
// immutable snapshots (see SnapshotCache), never through this interface.
type MacroStore interface {
	// Create a macro. Name must be unique within its scope; a global and a
	// family-scoped macro may coexist under one name.
	Create(m *Macro) error

	// Get a macro by scope and name.
	Get(familyID, name string) (*Macro, error)

	// List all macros across scopes.
	List() ([]*Macro, error)

	// Delete a macro by scope and name.
	Delete(familyID, name string) error
}

type macroKey struct {
	familyID string
	name     string
}

// InMemoryMacroStore implements MacroStore with a map keyed by scope+name.
type InMemoryMacroStore struct {
	macros map[macroKey]*Macro
	mu     sync.RWMutex
}

func NewInMemoryMacroStore() *InMemoryMacroStore {
	return &InMemoryMacroStore{macros: make(map[macroKey]*Macro)}
}

func (s *InMemoryMacroStore) Create(m *Macro) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := macroKey{m.FamilyID, m.Name}
	if _, exists := s.macros[key]; exists {
		return fmt.Errorf("macro %s already exists in scope %q", m.Name, scopeLabel(m.FamilyID))
	}

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.macros[key] = m
	return nil
}

func (s *InMemoryMacroStore) Get(familyID, name string) (*Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.macros[macroKey{familyID, name}]
	if !exists {
		return nil, fmt.Errorf("macro %s not found in scope %q", name, scopeLabel(familyID))
	}
	return m, nil
}

func (s *InMemoryMacroStore) List() ([]*Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Macro, 0, len(s.macros))
	for _, m := range s.macros {
		out = append(out, m)
	}
	return out, nil
}

func (s *InMemoryMacroStore) Delete(familyID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := macroKey{familyID, name}
	if _, exists := s.macros[key]; !exists {
		return fmt.Errorf("macro %s not found in scope %q", name, scopeLabel(familyID))
	}

	delete(s.macros, key)
	return nil
}

func scopeLabel(familyID string) string {
	if familyID == "" {
		return "global"
	}
	return familyID
}
