package dsl

// Snapshot is read-only access to the macro registry as it existed at one
// point in time. Lookup resolves name for the given family, preferring a
// family-scoped macro and falling back to a global one; familyID "" only
// sees globals. Implementations must be safe for concurrent use: the
// administrative write path publishes whole new snapshots rather than
// mutating one in place, so a resolver mid-expansion never observes a
// half-written macro.
type Snapshot interface {
	Lookup(familyID, name string) (Node, bool)
}

type emptySnapshot struct{}

func (emptySnapshot) Lookup(string, string) (Node, bool) { return nil, false }

// EmptySnapshot resolves nothing. Validation without macro context uses it.
var EmptySnapshot Snapshot = emptySnapshot{}

// ExpandMacros rewrites every MacroRef in the tree to its stored body,
// depth-first, resolving names against the snapshot for the given family.
// The input tree is never mutated.
//
// An unresolvable reference stays in the tree and contributes a "macro not
// found" error; a reference to a name already on the current expansion path
// stops expanding that branch with a circular-reference error. Detection is
// by an explicit currently-expanding set, so a cycle of any length is caught
// without unbounded recursion. Both conditions are reported as ordinary
// validation errors rather than failing the whole request, so valid sibling
// fields still produce usable trees.
func ExpandMacros(root Node, familyID string, macros Snapshot) (Node, []Error) {
	if macros == nil {
		macros = EmptySnapshot
	}
	e := &expander{
		familyID:  familyID,
		macros:    macros,
		expanding: make(map[string]bool),
	}
	out := e.expand(root)
	return out, e.errs
}

type expander struct {
	familyID  string
	macros    Snapshot
	expanding map[string]bool
	errs      []Error
}

func (e *expander) expand(n Node) Node {
	switch v := n.(type) {
	case *Match, *Proximity:
		return n
	case *Group:
		children := make([]Node, len(v.Children))
		for i, ch := range v.Children {
			children[i] = e.expand(ch)
		}
		return &Group{Op: v.Op, Children: children}
	case *MacroRef:
		return e.expandRef(v)
	}
	return n
}

func (e *expander) expandRef(ref *MacroRef) Node {
	if e.expanding[ref.Name] {
		e.errs = append(e.errs, macroErrorf(ref.Pos, "circular macro reference involving @%s", ref.Name))
		return ref
	}
	body, ok := e.macros.Lookup(e.familyID, ref.Name)
	if !ok {
		e.errs = append(e.errs, macroErrorf(ref.Pos, "macro @%s not found", ref.Name))
		return ref
	}
	e.expanding[ref.Name] = true
	bound := bindField(Clone(body), ref.Field)
	out := e.expand(bound)
	delete(e.expanding, ref.Name)
	return out
}

// bindField rebinds the leaves of a macro body (stored field-less) to the
// field the reference appeared under. Mutates n, which must be a fresh clone.
func bindField(n Node, field string) Node {
	if field == "" {
		return n
	}
	switch v := n.(type) {
	case *Match:
		v.Field = field
	case *Proximity:
		v.Field = field
	case *MacroRef:
		v.Field = field
	case *Group:
		for _, ch := range v.Children {
			bindField(ch, field)
		}
	}
	return n
}

// HasMacroRefs reports whether any MacroRef survives in the tree. A true
// result after expansion means the tree must not be evaluated.
func HasMacroRefs(n Node) bool {
	found := false
	Walk(n, func(_ []int, node Node) {
		if _, ok := node.(*MacroRef); ok {
			found = true
		}
	})
	return found
}
