package store

import (
	"fmt"
	"regexp"

	"github.com/ontolink/ontolink/dsl"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateMacroName checks a macro name against the naming rules: identifier
// shape, 1-64 characters, and not shadowing a query field (a macro named
// `clause` would make `@clause` read like a field reference gone wrong).
func ValidateMacroName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("macro name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("macro name length %d exceeds maximum of 64 characters", len(name))
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("macro name %q must start with a letter or underscore and contain only letters, digits, and underscores", name)
	}
	if dsl.KnownField(name) {
		return fmt.Errorf("macro name %q collides with a query field name", name)
	}
	return nil
}

// ValidateMacroBody checks that a macro body parses as a field-less
// expression. Macro references inside the body are allowed (they resolve at
// expansion time), so this catches only lexical and grammatical problems.
func ValidateMacroBody(body string) error {
	if body == "" {
		return fmt.Errorf("macro body cannot be empty")
	}
	if _, errs := dsl.ParseExpression(body); len(errs) > 0 {
		return fmt.Errorf("macro body does not parse: %s", errs[0].Message)
	}
	return nil
}

// ValidateMacro runs both name and body checks.
func ValidateMacro(m *Macro) error {
	if err := ValidateMacroName(m.Name); err != nil {
		return err
	}
	return ValidateMacroBody(m.Body)
}
