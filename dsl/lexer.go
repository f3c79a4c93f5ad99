package dsl

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lex scans a raw query string into a token stream. Lexical problems are
// reported as Errors with byte positions; scanning continues past them so the
// parser still sees every recoverable token and a single malformed query can
// surface multiple diagnostics in one pass.
func Lex(input string) ([]Token, []Error) {
	l := &lexer{input: input}
	l.run()
	return l.tokens, l.errs
}

type lexer struct {
	input  string
	pos    int
	tokens []Token
	errs   []Error
}

// Characters that terminate a bareword. ':' is excluded so that field
// prefixes like `heading:` scan as a single identifier plus the colon.
const barewordTerminators = " \t\r\n|!()/@\""

func (l *lexer) run() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '|':
			l.emit(Token{Kind: TokenPipe, Pos: l.pos})
			l.pos++
		case c == '!':
			l.emit(Token{Kind: TokenBang, Pos: l.pos})
			l.pos++
		case c == '(':
			l.emit(Token{Kind: TokenLParen, Pos: l.pos})
			l.pos++
		case c == ')':
			l.emit(Token{Kind: TokenRParen, Pos: l.pos})
			l.pos++
		case c == '"':
			l.scanQuoted()
		case c == '/':
			l.scanProximity()
		case c == '@':
			l.scanMacroRef()
		case isBarewordStart(c):
			l.scanBareword()
		default:
			l.scanGarbage()
		}
	}
}

func (l *lexer) emit(t Token) {
	l.tokens = append(l.tokens, t)
}

// scanQuoted consumes a double-quoted literal with backslash escapes. An
// unterminated literal is an error anchored at the opening quote.
func (l *lexer) scanQuoted() {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '\\':
			if l.pos+1 >= len(l.input) {
				l.errs = append(l.errs, lexErrorf(l.pos, "dangling escape at end of input"))
				l.pos++
				continue
			}
			next := l.input[l.pos+1]
			switch next {
			case '"', '\\':
				sb.WriteByte(next)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
			l.pos += 2
		case '"':
			l.pos++
			l.emit(Token{Kind: TokenLiteral, Value: sb.String(), Pos: start})
			return
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	l.errs = append(l.errs, lexErrorf(start, "unterminated quoted literal"))
	// Emit what was collected so the parser can keep going.
	l.emit(Token{Kind: TokenLiteral, Value: sb.String(), Pos: start})
}

// scanProximity consumes '/N' where N is a positive integer.
func (l *lexer) scanProximity() {
	start := l.pos
	l.pos++ // '/'
	digits := 0
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
		digits++
	}
	if digits == 0 {
		l.errs = append(l.errs, lexErrorf(start, "expected a number after '/' in proximity operator"))
		return
	}
	n, err := strconv.Atoi(l.input[start+1 : l.pos])
	if err != nil || n < 0 {
		l.errs = append(l.errs, lexErrorf(start, "invalid proximity distance %q", l.input[start:l.pos]))
		return
	}
	l.emit(Token{Kind: TokenProximity, Dist: n, Pos: start})
}

func (l *lexer) scanMacroRef() {
	start := l.pos
	l.pos++ // '@'
	nameStart := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == nameStart {
		l.errs = append(l.errs, lexErrorf(start, "expected a macro name after '@'"))
		return
	}
	l.emit(Token{Kind: TokenMacroRef, Value: l.input[nameStart:l.pos], Pos: start})
}

// scanBareword consumes an unquoted word. If the word is an identifier
// immediately followed by ':', it is a field key instead.
func (l *lexer) scanBareword() {
	start := l.pos
	for l.pos < len(l.input) && !strings.ContainsRune(barewordTerminators, rune(l.input[l.pos])) && l.input[l.pos] != ':' {
		l.pos++
	}
	word := l.input[start:l.pos]
	if l.pos < len(l.input) && l.input[l.pos] == ':' && isIdent(word) {
		l.pos++ // ':'
		l.emit(Token{Kind: TokenField, Value: word, Pos: start})
		return
	}
	l.emit(Token{Kind: TokenLiteral, Value: word, Pos: start})
}

// scanGarbage consumes a run of characters no other rule recognizes and
// reports it as one error.
func (l *lexer) scanGarbage() {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isGarbage(r) {
			break
		}
		l.pos += size
	}
	if l.pos == start {
		// Defensive: always make progress.
		_, size := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += size
	}
	l.errs = append(l.errs, lexErrorf(start, "unrecognized input %q", l.input[start:l.pos]))
}

func isGarbage(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	switch r {
	case '|', '!', '(', ')', '"', '/', '@', ':':
		return false
	}
	if r < utf8.RuneSelf && isBarewordStart(byte(r)) {
		return false
	}
	return true
}

func isBarewordStart(c byte) bool {
	return c == '_' || c == '-' || c == '*' || c == '%' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c >= utf8.RuneSelf
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
