package dsl

import (
	"fmt"
	"strings"
)

// ValidationResult is the structured outcome of running a query through the
// full pipeline: lex, parse, macro expansion, capability checks, guardrails,
// cost. Errors is always non-nil; a clean query has it empty. Trees are
// returned even when errors are present so callers can show partial
// diagnostics against the structure that did parse.
type ValidationResult struct {
	Trees          map[string]Node `json:"per_field_trees"`
	NormalizedText string          `json:"normalized_text"`
	Errors         []Error         `json:"errors"`
	QueryCost      int             `json:"query_cost"`
}

// Valid reports whether the query passed with no diagnostics.
func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// SnapshotProvider hands out the current macro snapshot. Providers publish
// replacement snapshots atomically, so two calls may observe different
// registries but never a torn one.
type SnapshotProvider interface {
	Macros() Snapshot
}

// FamilyResolver maps a rule id to the ontology family the rule is bound to.
// Implemented by the rule store; a missing rule is a service-level error.
type FamilyResolver interface {
	RuleFamily(ruleID string) (string, error)
}

// Engine ties the DSL pipeline to its collaborators: guardrail limits, the
// macro snapshot provider, and the rule store for family-scoped validation.
// All methods are safe for concurrent use; the engine holds no mutable state
// of its own.
type Engine struct {
	limits Limits
	macros SnapshotProvider
	rules  FamilyResolver
}

// NewEngine builds an engine. macros and rules may be nil: without a
// snapshot provider every macro reference reports "not found", and without a
// family resolver ValidateForRule always errors.
func NewEngine(limits Limits, macros SnapshotProvider, rules FamilyResolver) *Engine {
	return &Engine{limits: limits.orDefaults(), macros: macros, rules: rules}
}

// Limits returns the guardrail configuration the engine validates against.
func (e *Engine) Limits() Limits { return e.limits }

// Validate runs the pipeline with no family context: only global macros are
// visible. Malformed input never produces a Go error; every problem rides
// in the result's Errors list.
func (e *Engine) Validate(text string) ValidationResult {
	return e.ValidateForFamily(text, "")
}

// ValidateForFamily runs the pipeline resolving macros for familyID first,
// falling back to globals.
func (e *Engine) ValidateForFamily(text, familyID string) ValidationResult {
	tokens, errs := Lex(text)
	trees, parseErrs := Parse(tokens)
	errs = append(errs, parseErrs...)

	snapshot := EmptySnapshot
	if e.macros != nil {
		snapshot = e.macros.Macros()
	}
	expanded := make(map[string]Node, len(trees))
	for field, root := range trees {
		node, macroErrs := ExpandMacros(root, familyID, snapshot)
		errs = append(errs, macroErrs...)
		expanded[field] = node
	}

	// Macro bodies may smuggle an operator onto a field that does not allow
	// it, so capabilities are re-checked on the expanded trees.
	errs = append(errs, checkCapabilities(expanded, errs)...)

	cost := TotalCost(expanded)
	errs = append(errs, e.limits.Check(expanded, cost)...)

	if errs == nil {
		errs = []Error{}
	}
	return ValidationResult{
		Trees:          expanded,
		NormalizedText: NormalizeQuery(text),
		Errors:         errs,
		QueryCost:      cost,
	}
}

// ValidateForRule resolves macros in the scope of the rule's family. Unknown
// rules are a caller contract violation and surface as a Go error, distinct
// from validation diagnostics.
func (e *Engine) ValidateForRule(ruleID, text string) (ValidationResult, error) {
	if e.rules == nil {
		return ValidationResult{}, fmt.Errorf("no rule store configured")
	}
	familyID, err := e.rules.RuleFamily(ruleID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("resolving family for rule %s: %w", ruleID, err)
	}
	return e.ValidateForFamily(text, familyID), nil
}

// checkCapabilities validates operator legality per field on expanded trees.
// Duplicates of errors already raised at parse time are filtered out by
// message, so a direct `heading: "a" /5 "b"` is reported once.
func checkCapabilities(trees map[string]Node, existing []Error) []Error {
	var errs []Error
	seen := make(map[string]bool)
	for _, e := range existing {
		seen[e.Message] = true
	}
	for _, root := range trees {
		Walk(root, func(_ []int, n Node) {
			p, ok := n.(*Proximity)
			if !ok || !KnownField(p.Field) || FieldAllowsProximity(p.Field) {
				return
			}
			msg := fmt.Sprintf("proximity operator is only valid on the clause field, not %q", p.Field)
			if !seen[msg] {
				seen[msg] = true
				errs = append(errs, semanticErrorf(0, "%s", msg))
			}
		})
	}
	return errs
}

// NormalizeQuery collapses runs of whitespace to single spaces and trims the
// ends, the canonical form stored alongside a rule.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
