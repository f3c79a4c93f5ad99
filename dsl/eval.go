package dsl

import (
	"sort"
	"strings"
	"unicode"
)

// Light is the three-way traffic-light classification of an evaluation.
type Light string

const (
	// Green: the tree as a whole matched.
	Green Light = "green"
	// Yellow: the tree did not match but at least one leaf fired, a partial
	// signal worth a reviewer's glance.
	Yellow Light = "yellow"
	// Red: nothing fired at all.
	Red Light = "red"
)

// Document is the text payload one section presents for evaluation, keyed by
// field name. Fields absent from the document evaluate as empty text.
type Document map[string]string

// SectionDocument builds the standard document for a contract section: the
// body text doubles as the clause field, the heading rides alongside.
func SectionDocument(heading, body string) Document {
	return Document{"heading": heading, "clause": body}
}

// Evaluation is the outcome of matching one expanded tree against one
// document. MatchedPaths lists the tree path of every leaf that individually
// succeeded, whether or not the overall tree matched; it backs the "why
// (not) matched" explanation shown to reviewers.
type Evaluation struct {
	Matched      bool    `json:"matched"`
	TrafficLight Light   `json:"traffic_light"`
	MatchedPaths [][]int `json:"matched_node_paths"`
}

// Evaluate matches an expanded, guardrail-passed tree against a document.
// It is pure and side-effect free; trees may be evaluated concurrently.
// A MacroRef that survived expansion evaluates as false.
func Evaluate(root Node, doc Document) Evaluation {
	ev := &evaluator{doc: doc}
	matched := ev.eval(root, nil)
	light := Red
	switch {
	case matched:
		light = Green
	case len(ev.paths) > 0:
		light = Yellow
	}
	paths := ev.paths
	if paths == nil {
		paths = [][]int{}
	}
	return Evaluation{Matched: matched, TrafficLight: light, MatchedPaths: paths}
}

// CombineFields folds per-field trees into a single tree: multiple field
// sections in one query conjoin implicitly. Field order is made deterministic
// by sorting, so paths into the combined tree are stable.
func CombineFields(trees map[string]Node) Node {
	if len(trees) == 0 {
		return nil
	}
	fields := make([]string, 0, len(trees))
	for f := range trees {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	if len(fields) == 1 {
		return trees[fields[0]]
	}
	children := make([]Node, len(fields))
	for i, f := range fields {
		children[i] = trees[f]
	}
	return &Group{Op: And, Children: children}
}

type evaluator struct {
	doc   Document
	paths [][]int
}

func (ev *evaluator) eval(n Node, path []int) bool {
	switch v := n.(type) {
	case *Match:
		ok := matchLiteral(ev.doc[v.Field], v.Value) != v.Negate
		if ok {
			ev.paths = append(ev.paths, append([]int(nil), path...))
		}
		return ok
	case *Proximity:
		ok := matchProximity(ev.doc[v.Field], v.TermA, v.TermB, v.MaxWords)
		if ok {
			ev.paths = append(ev.paths, append([]int(nil), path...))
		}
		return ok
	case *Group:
		if v.Op == And {
			all := true
			for i, ch := range v.Children {
				// No short-circuit: every leaf gets its chance to report.
				if !ev.eval(ch, append(path, i)) {
					all = false
				}
			}
			return all && len(v.Children) > 0
		}
		any := false
		for i, ch := range v.Children {
			if ev.eval(ch, append(path, i)) {
				any = true
			}
		}
		return any
	case *MacroRef:
		return false
	}
	return false
}

// matches is the lean matcher used by the counterfactual analyzer: no path
// recording, short-circuiting groups, and an optional muted path whose node
// is treated as always true.
func matches(n Node, doc Document, path, muted []int) bool {
	if muted != nil && pathEqual(path, muted) {
		return true
	}
	switch v := n.(type) {
	case *Match:
		return matchLiteral(doc[v.Field], v.Value) != v.Negate
	case *Proximity:
		return matchProximity(doc[v.Field], v.TermA, v.TermB, v.MaxWords)
	case *Group:
		if v.Op == And {
			for i, ch := range v.Children {
				if !matches(ch, doc, append(path, i), muted) {
					return false
				}
			}
			return len(v.Children) > 0
		}
		for i, ch := range v.Children {
			if matches(ch, doc, append(path, i), muted) {
				return true
			}
		}
		return false
	case *MacroRef:
		return false
	}
	return false
}

func pathEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matchLiteral is a case-insensitive substring test.
func matchLiteral(text, value string) bool {
	if value == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(value))
}

// matchProximity reports whether both terms occur in the text with at most
// maxWords words separating their nearest occurrences. Terms may be
// multi-word phrases; the gap is counted between the end of one occurrence
// and the start of the other.
func matchProximity(text, termA, termB string, maxWords int) bool {
	words := splitWords(text)
	wa := splitWords(termA)
	wb := splitWords(termB)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	posA := phrasePositions(words, wa)
	posB := phrasePositions(words, wb)
	if len(posA) == 0 || len(posB) == 0 {
		return false
	}
	for _, a := range posA {
		for _, b := range posB {
			if wordGap(a, len(wa), b, len(wb)) <= maxWords {
				return true
			}
		}
	}
	return false
}

func wordGap(startA, lenA, startB, lenB int) int {
	switch {
	case startB >= startA+lenA:
		return startB - (startA + lenA)
	case startA >= startB+lenB:
		return startA - (startB + lenB)
	default:
		return 0 // overlapping occurrences
	}
}

// splitWords lowercases and splits on anything that is not a letter or digit.
func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// phrasePositions returns every index in words where the phrase starts.
func phrasePositions(words, phrase []string) []int {
	var out []int
	for i := 0; i+len(phrase) <= len(words); i++ {
		hit := true
		for j, w := range phrase {
			if words[i+j] != w {
				hit = false
				break
			}
		}
		if hit {
			out = append(out, i)
		}
	}
	return out
}
