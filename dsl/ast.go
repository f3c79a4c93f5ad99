package dsl

import "encoding/json"

// Node is one vertex of a parsed query expression. The concrete variants are
// Match, Proximity, Group and MacroRef; every traversal in this package
// switches exhaustively over those four. Nodes are treated as immutable once
// built: transformations (macro expansion, counterfactual muting) clone
// rather than mutate, so trees can be shared freely across goroutines.
type Node interface {
	isNode()
}

// Op is the boolean operator of a Group. It is always explicit, never
// inferred from context.
type Op int

const (
	And Op = iota
	Or
)

func (o Op) String() string {
	if o == Or {
		return "or"
	}
	return "and"
}

// Match is a leaf that succeeds when the field's text contains Value
// (case-insensitive substring), inverted when Negate is set.
type Match struct {
	Field  string
	Value  string
	Negate bool
}

// Proximity is a leaf that succeeds when TermA and TermB both occur in the
// field's text with at most MaxWords words between their nearest occurrences.
// Only fields whose capability set includes proximity may carry this node.
type Proximity struct {
	Field    string
	TermA    string
	TermB    string
	MaxWords int
}

// Group is an internal node combining its children with And or Or.
type Group struct {
	Op       Op
	Children []Node
}

// MacroRef is a pre-expansion placeholder for `@name`. Field is the field
// section the reference appeared in, so the macro body can be bound to it
// during expansion. A MacroRef must never reach the evaluator; one that
// survives expansion marks a "macro not found" condition.
type MacroRef struct {
	Name  string
	Field string
	Pos   int
}

func (*Match) isNode()     {}
func (*Proximity) isNode() {}
func (*Group) isNode()     {}
func (*MacroRef) isNode()  {}

// Clone deep-copies a tree.
func Clone(n Node) Node {
	switch v := n.(type) {
	case *Match:
		c := *v
		return &c
	case *Proximity:
		c := *v
		return &c
	case *Group:
		children := make([]Node, len(v.Children))
		for i, ch := range v.Children {
			children[i] = Clone(ch)
		}
		return &Group{Op: v.Op, Children: children}
	case *MacroRef:
		c := *v
		return &c
	}
	return nil
}

// Depth returns the Group nesting depth of a tree. Leaves contribute
// nothing: a bare leaf is 0, a flat group is 1, a group inside a group is 2.
func Depth(n Node) int {
	g, ok := n.(*Group)
	if !ok {
		return 0
	}
	max := 0
	for _, ch := range g.Children {
		if d := Depth(ch); d > max {
			max = d
		}
	}
	return 1 + max
}

// CountNodes returns the total number of nodes in a tree, leaves and internal
// nodes alike.
func CountNodes(n Node) int {
	g, ok := n.(*Group)
	if !ok {
		return 1
	}
	total := 1
	for _, ch := range g.Children {
		total += CountNodes(ch)
	}
	return total
}

// NodeAt resolves a path of child indexes from the root. An empty path is the
// root itself. The second return is false when the path walks off the tree.
func NodeAt(root Node, path []int) (Node, bool) {
	cur := root
	for _, idx := range path {
		g, ok := cur.(*Group)
		if !ok || idx < 0 || idx >= len(g.Children) {
			return nil, false
		}
		cur = g.Children[idx]
	}
	return cur, true
}

// Walk visits every node in preorder, handing the visitor the node's path
// from the root. The path slice is reused between calls; visitors that retain
// it must copy.
func Walk(root Node, visit func(path []int, n Node)) {
	walk(root, nil, visit)
}

func walk(n Node, path []int, visit func(path []int, n Node)) {
	visit(path, n)
	if g, ok := n.(*Group); ok {
		for i, ch := range g.Children {
			walk(ch, append(path, i), visit)
		}
	}
}

// JSON encoding of the node union tags each variant with a "type" field, the
// shape exchanged with API callers.

func (m *Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Field  string `json:"field"`
		Value  string `json:"value"`
		Negate bool   `json:"negate,omitempty"`
	}{"match", m.Field, m.Value, m.Negate})
}

func (p *Proximity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Field    string `json:"field"`
		TermA    string `json:"term_a"`
		TermB    string `json:"term_b"`
		MaxWords int    `json:"max_words"`
	}{"proximity", p.Field, p.TermA, p.TermB, p.MaxWords})
}

func (g *Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Operator string `json:"operator"`
		Children []Node `json:"children"`
	}{"group", g.Op.String(), g.Children})
}

func (r *MacroRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{"macro_ref", r.Name})
}
