package dsl

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	// TokenField is a field identifier followed by ':', e.g. `heading:`.
	TokenField TokenKind = iota
	// TokenLiteral is a quoted string (decoded) or a bareword.
	TokenLiteral
	// TokenPipe is the boolean-OR operator '|'.
	TokenPipe
	// TokenBang is the negation prefix '!'.
	TokenBang
	// TokenProximity is the proximity operator '/N'.
	TokenProximity
	// TokenMacroRef is a macro reference '@name'.
	TokenMacroRef
	// TokenLParen and TokenRParen group sub-expressions.
	TokenLParen
	TokenRParen
)

func (k TokenKind) String() string {
	switch k {
	case TokenField:
		return "field"
	case TokenLiteral:
		return "literal"
	case TokenPipe:
		return "|"
	case TokenBang:
		return "!"
	case TokenProximity:
		return "proximity"
	case TokenMacroRef:
		return "macro reference"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	}
	return "unknown"
}

// Token is a single lexical unit of a query.
type Token struct {
	Kind  TokenKind
	Value string // field name, decoded literal, or macro name
	Dist  int    // word distance for TokenProximity
	Pos   int    // byte offset of the token start in the original input
}
