package dsl

import "fmt"

// Error is a single diagnostic produced while validating a query. Position is
// a byte offset into the original input, or 0 when the error describes the
// query as a whole (guardrail violations, macro expansion problems).
//
// Errors are data: they travel inside a ValidationResult rather than being
// returned through the error interface, so a single pass over a malformed
// query can report every distinct problem it finds.
type Error struct {
	Message  string `json:"message"`
	Position int    `json:"position"`
}

func (e Error) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("%s (at offset %d)", e.Message, e.Position)
	}
	return e.Message
}

func lexErrorf(pos int, format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...), Position: pos}
}

func syntaxErrorf(pos int, format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...), Position: pos}
}

func semanticErrorf(pos int, format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...), Position: pos}
}

func macroErrorf(pos int, format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...), Position: pos}
}

func guardrailErrorf(format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...)}
}
