package store

import "time"

// Rule links an ontology family to a DSL query. Reviewers author the query;
// the engine validates it in the rule's family scope so family-shadowed
// macros resolve the way the author saw them.
type Rule struct {
	ID        string
	FamilyID  string
	Name      string
	Query     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Macro is a named, reusable sub-expression referenced from queries as
// `@name`. FamilyID scopes it to one family; empty means global. Body is
// field-less DSL expression text, parsed once when a snapshot is built.
// Two macros may share a name when one is global and the other family-scoped;
// resolution prefers the family-scoped one.
type Macro struct {
	ID        string
	Name      string
	FamilyID  string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
