package dsl

// Query cost is a deterministic, purely structural proxy for evaluation
// expense. Substring matches are cheap; proximity scans are strictly more
// expensive; groups add overhead proportional to their width so a wide OR
// fans out more cost than a narrow one. The weights are coarse on purpose:
// the number feeds the guardrail ceiling and UI feedback, not a planner.
const (
	matchWeight     = 2
	proximityWeight = 8
	groupOverhead   = 1
)

// Cost returns the estimated cost of one tree. Identical trees always yield
// identical costs; there is no hidden state.
func Cost(n Node) int {
	switch v := n.(type) {
	case *Match:
		return matchWeight
	case *Proximity:
		return proximityWeight
	case *Group:
		total := groupOverhead + len(v.Children)
		for _, ch := range v.Children {
			total += Cost(ch)
		}
		return total
	case *MacroRef:
		// Unresolved references already carry an error; weight them like a
		// plain match so the total stays meaningful.
		return matchWeight
	}
	return 0
}

// TotalCost sums tree costs across all field sections of a query.
func TotalCost(trees map[string]Node) int {
	total := 0
	for _, root := range trees {
		total += Cost(root)
	}
	return total
}
