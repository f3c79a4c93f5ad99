package dsl

import (
	"context"
	"fmt"
)

// Section is one corpus entry as seen by the counterfactual analyzer: a
// previously classified contract section plus whether a reviewer has pinned
// it as a true negative.
type Section struct {
	ID             string
	DocumentID     string
	Heading        string
	Body           string
	PinnedNegative bool
}

// SectionSource is the narrow read-only view of the corpus collaborator.
// The analyzer never writes through it.
type SectionSource interface {
	ListSections(ctx context.Context) ([]Section, error)
}

// CounterfactualResult reports the aggregate effect of muting one node.
type CounterfactualResult struct {
	// NewHits counts sections that satisfy the muted tree but not the
	// original one.
	NewHits int `json:"new_hits"`
	// FalsePositives counts new hits that are pinned true negatives.
	FalsePositives int `json:"false_positives"`
	// TotalMatched counts all sections matching the muted tree.
	TotalMatched int `json:"total_matched"`
}

// Counterfactual estimates what happens if the node at mutedPath were relaxed
// to always-true: how many corpus sections newly match, how many of those are
// known negatives, and how many match overall. It is a pure function of
// (tree, path, corpus snapshot), so reviewers can explore "what if"
// repeatedly without touching stored state.
//
// The corpus scan is the one potentially long-running DSL operation; it
// checks ctx between sections and stops early on cancellation. A failing
// corpus source is a service-level error, not a validation diagnostic.
func Counterfactual(ctx context.Context, root Node, mutedPath []int, corpus SectionSource) (CounterfactualResult, error) {
	var res CounterfactualResult
	if root == nil {
		return res, fmt.Errorf("counterfactual: nil tree")
	}
	if _, ok := NodeAt(root, mutedPath); !ok {
		return res, fmt.Errorf("counterfactual: no node at path %v", mutedPath)
	}
	if HasMacroRefs(root) {
		return res, fmt.Errorf("counterfactual: tree contains unexpanded macro references")
	}

	sections, err := corpus.ListSections(ctx)
	if err != nil {
		return res, fmt.Errorf("counterfactual: listing corpus sections: %w", err)
	}

	if mutedPath == nil {
		// A nil path would mute the root; normalize so pathEqual treats it
		// as the empty path.
		mutedPath = []int{}
	}
	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return CounterfactualResult{}, err
		}
		doc := SectionDocument(s.Heading, s.Body)
		muted := matches(root, doc, []int{}, mutedPath)
		if !muted {
			continue
		}
		res.TotalMatched++
		if !matches(root, doc, []int{}, nil) {
			res.NewHits++
			if s.PinnedNegative {
				res.FalsePositives++
			}
		}
	}
	return res, nil
}
