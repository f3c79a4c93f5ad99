package dsl

import "strings"

// Limits are the complexity guardrails applied to a fully expanded query.
// They are configuration: the zero value means "use defaults", and deployments
// may tighten or relax any of them.
type Limits struct {
	MaxDepth int // deepest allowed Group nesting per field tree
	MaxNodes int // total nodes across all field trees
	MaxCost  int // estimated query cost ceiling
}

// DefaultLimits returns the stock guardrail configuration.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 5, MaxNodes: 50, MaxCost: 100}
}

func (l Limits) orDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = d.MaxNodes
	}
	if l.MaxCost <= 0 {
		l.MaxCost = d.MaxCost
	}
	return l
}

// Check walks fully expanded field trees and reports every guardrail the
// query violates: depth, node count, cost, and wildcard-only literals.
// Wildcards are rejected unconditionally, independent of the numeric limits.
// Violations are data, not failures; callers still receive the trees.
func (l Limits) Check(trees map[string]Node, cost int) []Error {
	l = l.orDefaults()
	var errs []Error

	totalNodes := 0
	for field, root := range trees {
		totalNodes += CountNodes(root)
		if d := Depth(root); d > l.MaxDepth {
			errs = append(errs, guardrailErrorf("field %q expression depth %d exceeds maximum allowed depth %d", field, d, l.MaxDepth))
		}
		Walk(root, func(_ []int, n Node) {
			switch v := n.(type) {
			case *Match:
				if isWildcardOnly(v.Value) {
					errs = append(errs, guardrailErrorf("wildcard-only literal %q is not allowed", v.Value))
				}
			case *Proximity:
				if isWildcardOnly(v.TermA) || isWildcardOnly(v.TermB) {
					errs = append(errs, guardrailErrorf("wildcard-only literal in proximity pair is not allowed"))
				}
			}
		})
	}
	if totalNodes > l.MaxNodes {
		errs = append(errs, guardrailErrorf("query has %d nodes, exceeds maximum allowed node count %d", totalNodes, l.MaxNodes))
	}
	if cost > l.MaxCost {
		errs = append(errs, guardrailErrorf("query cost %d exceeds maximum allowed cost %d", cost, l.MaxCost))
	}
	return errs
}

// isWildcardOnly reports whether a literal consists solely of wildcard
// markers and would therefore match everything.
func isWildcardOnly(v string) bool {
	return v != "" && strings.Trim(v, "*%") == ""
}
