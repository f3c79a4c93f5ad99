package dsl

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFamilies map[string]string

func (s staticFamilies) RuleFamily(ruleID string) (string, error) {
	family, ok := s[ruleID]
	if !ok {
		return "", fmt.Errorf("rule with ID %s not found", ruleID)
	}
	return family, nil
}

func TestValidateCleanQuery(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	result := engine.Validate(`heading: "Indebtedness" | "Liens" clause: "incur" /5 "debt"`)

	assert.Empty(t, result.Errors)
	assert.Positive(t, result.QueryCost)
	require.Len(t, result.Trees, 2)
	require.NotNil(t, result.Trees["heading"])
	require.NotNil(t, result.Trees["clause"])
	assert.True(t, result.Valid())
}

func TestValidateProximityOnHeadingReportedOnce(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	result := engine.Validate(`heading: "a" /5 "b"`)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "proximity operator is only valid on the clause field")
	assert.Positive(t, result.QueryCost)
	assert.NotNil(t, result.Trees["heading"])
}

func TestValidateAccumulatesIndependentErrors(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	result := engine.Validate(`$$$ heading: "a" /2 "b" clause: @missing`)

	require.GreaterOrEqual(t, len(result.Errors), 3)
	messages := ""
	for _, e := range result.Errors {
		messages += e.Message + "\n"
	}
	assert.Contains(t, messages, "unrecognized")
	assert.Contains(t, messages, "proximity operator is only valid")
	assert.Contains(t, messages, "macro @missing not found")

	// Both field trees still come back for diagnostics.
	assert.NotNil(t, result.Trees["heading"])
	assert.NotNil(t, result.Trees["clause"])
}

func TestValidateErrorsNeverNil(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	result := engine.Validate(`clause: "fine"`)
	assert.NotNil(t, result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidateNormalizedText(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	result := engine.Validate("  clause:   \"a\"  \n\t |  \"b\" ")
	assert.Equal(t, `clause: "a" | "b"`, result.NormalizedText)
}

func TestValidateMacroReferentialTransparency(t *testing.T) {
	const body = `"indebtedness" | "indebted"`
	snap := testSnapshot{{"", "debt"}: body}
	engine := NewEngine(Limits{}, snap, nil)

	viaMacro := engine.Validate(`clause: @debt`)
	direct := engine.Validate(`clause: ` + body)

	require.Empty(t, viaMacro.Errors)
	require.Empty(t, direct.Errors)
	assert.Equal(t, direct.Trees["clause"], viaMacro.Trees["clause"])
	assert.Equal(t, direct.QueryCost, viaMacro.QueryCost)
}

func TestValidateMacroExpansionCountsTowardGuardrails(t *testing.T) {
	// The macro body alone blows the node budget; the reference is one
	// token but guardrails see the expanded tree.
	terms := ""
	for i := 0; i < 60; i++ {
		if i > 0 {
			terms += " | "
		}
		terms += fmt.Sprintf("%q", fmt.Sprintf("t%02d", i))
	}
	snap := testSnapshot{{"", "wide"}: terms}
	engine := NewEngine(Limits{}, snap, nil)

	result := engine.Validate(`clause: @wide`)
	require.NotEmpty(t, result.Errors)
	assert.True(t, hasGuardrailKeyword(result.Errors))
}

func TestValidateMacroSmugglingProximityOntoHeading(t *testing.T) {
	snap := testSnapshot{{"", "near"}: `"incur" /5 "debt"`}
	engine := NewEngine(Limits{}, snap, nil)

	result := engine.Validate(`heading: @near`)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "proximity operator is only valid on the clause field")

	// The same body is fine on clause.
	result = engine.Validate(`clause: @near`)
	assert.Empty(t, result.Errors)
}

func TestValidateCycleIsAnErrorNotAFailure(t *testing.T) {
	snap := testSnapshot{
		{"", "a"}: `@b`,
		{"", "b"}: `@a`,
	}
	engine := NewEngine(Limits{}, snap, nil)

	// The cyclic field errors; the healthy sibling field still validates.
	result := engine.Validate(`clause: @a heading: "Liens"`)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "circular macro reference")
	assert.NotNil(t, result.Trees["heading"])
}

func TestValidateForFamilyScoping(t *testing.T) {
	snap := testSnapshot{
		{"", "debt"}:   `"global"`,
		{"f1", "debt"}: `"scoped"`,
	}
	engine := NewEngine(Limits{}, snap, nil)

	scoped := engine.ValidateForFamily(`clause: @debt`, "f1")
	require.Empty(t, scoped.Errors)
	assert.Equal(t, &Match{Field: "clause", Value: "scoped"}, scoped.Trees["clause"])

	global := engine.Validate(`clause: @debt`)
	require.Empty(t, global.Errors)
	assert.Equal(t, &Match{Field: "clause", Value: "global"}, global.Trees["clause"])
}

func TestValidateForRule(t *testing.T) {
	snap := testSnapshot{
		{"f1", "debt"}: `"scoped"`,
		{"", "debt"}:   `"global"`,
	}
	engine := NewEngine(Limits{}, snap, staticFamilies{"rule-1": "f1"})

	result, err := engine.ValidateForRule("rule-1", `clause: @debt`)
	require.NoError(t, err)
	assert.Equal(t, &Match{Field: "clause", Value: "scoped"}, result.Trees["clause"])
}

func TestValidateForRuleUnknownRule(t *testing.T) {
	engine := NewEngine(Limits{}, nil, staticFamilies{})
	_, err := engine.ValidateForRule("nope", `clause: "x"`)
	assert.Error(t, err)
}

func TestValidateForRuleNoStore(t *testing.T) {
	engine := NewEngine(Limits{}, nil, nil)
	_, err := engine.ValidateForRule("any", `clause: "x"`)
	assert.Error(t, err)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, `clause: "a"`, NormalizeQuery("\n clause:   \"a\"\t"))
	assert.Equal(t, "", NormalizeQuery("   "))
}
