package dsl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostProximityCostsMoreThanMatch(t *testing.T) {
	match := Cost(&Match{Field: "clause", Value: "loan"})
	prox := Cost(&Proximity{Field: "clause", TermA: "incur", TermB: "debt", MaxWords: 5})
	assert.Greater(t, prox, match)
}

func TestCostPositiveForProximityQuery(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	result := engine.Validate(`clause: "a" /5 "b"`)
	require.Empty(t, result.Errors)
	assert.Positive(t, result.QueryCost)
}

func TestCostMonotonicInTermCount(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)

	prev := 0
	for n := 1; n <= 8; n++ {
		terms := make([]string, n)
		for i := range terms {
			terms[i] = fmt.Sprintf("%q", fmt.Sprintf("t%d", i))
		}
		cost := engine.Validate("clause: " + strings.Join(terms, " | ")).QueryCost
		assert.Greater(t, cost, prev, "cost must grow with term count at n=%d", n)
		prev = cost
	}
}

func TestCostComplexQueryCostsMoreThanSingleLiteral(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)

	single := engine.Validate(`heading: "Indebtedness"`)
	complexQ := engine.Validate(`heading: "Indebtedness" | "Liens" clause: "incur" /10 "indebtedness" defined_term: "Permitted Liens"`)
	require.Empty(t, single.Errors)
	require.Empty(t, complexQ.Errors)
	assert.Greater(t, complexQ.QueryCost, single.QueryCost)
}

func TestCostDeterministic(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	const query = `heading: "Indebtedness" clause: "incur" /5 "debt" | !"permitted"`

	first := engine.Validate(query).QueryCost
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, engine.Validate(query).QueryCost)
	}
}

func TestCostWideGroupCostsMoreThanNarrow(t *testing.T) {
	narrow := Cost(&Group{Op: Or, Children: []Node{
		&Match{Field: "clause", Value: "a"},
		&Match{Field: "clause", Value: "b"},
	}})
	wide := Cost(&Group{Op: Or, Children: []Node{
		&Match{Field: "clause", Value: "a"},
		&Match{Field: "clause", Value: "b"},
		&Match{Field: "clause", Value: "c"},
		&Match{Field: "clause", Value: "d"},
	}})
	assert.Greater(t, wide, narrow)
}
