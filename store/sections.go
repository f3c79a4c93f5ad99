package store

import (
	"context"

	"github.com/ontolink/ontolink/dsl"
)

// InMemorySectionSource serves a fixed corpus snapshot from memory. Used in
// tests and databaseless runs; the production corpus lives in postgres.
type InMemorySectionSource struct {
	sections []dsl.Section
}

func NewInMemorySectionSource(sections []dsl.Section) *InMemorySectionSource {
	copied := make([]dsl.Section, len(sections))
	copy(copied, sections)
	return &InMemorySectionSource{sections: copied}
}

// ListSections returns the corpus. The slice is copied so callers cannot
// mutate the snapshot out from under concurrent scans.
func (s *InMemorySectionSource) ListSections(ctx context.Context) ([]dsl.Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]dsl.Section, len(s.sections))
	copy(out, s.sections)
	return out, nil
}
