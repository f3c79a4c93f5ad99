package dsl

// Parse consumes a token stream and builds one expression tree per field
// section. Parsing is loss-tolerant: grammar violations are recorded as
// Errors and the parser keeps going, so callers always get back whatever
// trees were recoverable alongside the full diagnostic list.
func Parse(tokens []Token) (map[string]Node, []Error) {
	p := &parser{toks: tokens}
	trees := make(map[string]Node)
	for !p.done() {
		tok := p.peek()
		if tok.Kind != TokenField {
			p.errs = append(p.errs, syntaxErrorf(tok.Pos, "expected a field prefix such as 'clause:' before %s", tok.Kind))
			p.skipToField()
			continue
		}
		p.next()
		if !KnownField(tok.Value) {
			p.errs = append(p.errs, semanticErrorf(tok.Pos, "unknown field %q", tok.Value))
		}
		node := p.parseOrExpr(tok.Value)
		if node == nil {
			p.errs = append(p.errs, syntaxErrorf(tok.Pos, "field %q has no expression", tok.Value))
			continue
		}
		if existing, ok := trees[tok.Value]; ok {
			// A repeated field section narrows the earlier one.
			trees[tok.Value] = &Group{Op: And, Children: []Node{existing, node}}
		} else {
			trees[tok.Value] = node
		}
	}
	return trees, p.errs
}

// ParseExpression parses a field-less expression, the form macro bodies are
// stored in. Leaves carry an empty field name until the expression is bound
// to a referencing field during macro expansion.
func ParseExpression(text string) (Node, []Error) {
	tokens, errs := Lex(text)
	p := &parser{toks: tokens, errs: errs}
	node := p.parseOrExpr("")
	if node == nil {
		p.errs = append(p.errs, syntaxErrorf(0, "empty expression"))
	}
	for !p.done() {
		tok := p.next()
		p.errs = append(p.errs, syntaxErrorf(tok.Pos, "unexpected %s in expression", tok.Kind))
	}
	return node, p.errs
}

type parser struct {
	toks []Token
	pos  int
	errs []Error
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() Token {
	if p.done() {
		return Token{Kind: TokenKind(-1), Pos: p.endPos()}
	}
	return p.toks[p.pos]
}

func (p *parser) next() Token {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

func (p *parser) endPos() int {
	if len(p.toks) == 0 {
		return 0
	}
	return p.toks[len(p.toks)-1].Pos
}

func (p *parser) skipToField() {
	for !p.done() && p.peek().Kind != TokenField {
		p.pos++
	}
}

// parseOrExpr parses a '|'-joined sequence of terms for one field. A single
// term stays a bare leaf; two or more wrap in an Or group.
func (p *parser) parseOrExpr(field string) Node {
	var terms []Node
	for {
		if t := p.parseTerm(field); t != nil {
			terms = append(terms, t)
		}
		if p.peek().Kind == TokenPipe {
			p.next()
			continue
		}
		break
	}
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}
	return &Group{Op: Or, Children: terms}
}

func (p *parser) parseTerm(field string) Node {
	negate := false
	negatePos := 0
	if p.peek().Kind == TokenBang {
		negatePos = p.next().Pos
		negate = true
	}

	tok := p.peek()
	switch tok.Kind {
	case TokenLParen:
		p.next()
		inner := p.parseOrExpr(field)
		if p.peek().Kind == TokenRParen {
			p.next()
		} else {
			p.errs = append(p.errs, syntaxErrorf(tok.Pos, "unclosed '(' in field %q", field))
		}
		if negate {
			p.errs = append(p.errs, semanticErrorf(negatePos, "negation applies to literals only, not groups"))
		}
		return inner

	case TokenMacroRef:
		p.next()
		if negate {
			p.errs = append(p.errs, semanticErrorf(negatePos, "negation applies to literals only, not macro references"))
		}
		return &MacroRef{Name: tok.Value, Field: field, Pos: tok.Pos}

	case TokenLiteral:
		p.next()
		if p.peek().Kind != TokenProximity {
			return &Match{Field: field, Value: tok.Value, Negate: negate}
		}
		prox := p.next()
		if p.peek().Kind != TokenLiteral {
			p.errs = append(p.errs, syntaxErrorf(prox.Pos, "proximity operator requires a literal on both sides"))
			return &Match{Field: field, Value: tok.Value, Negate: negate}
		}
		second := p.next()
		if negate {
			p.errs = append(p.errs, semanticErrorf(negatePos, "negation applies to literals only, not proximity pairs"))
		}
		if KnownField(field) && !FieldAllowsProximity(field) {
			p.errs = append(p.errs, semanticErrorf(prox.Pos, "proximity operator is only valid on the clause field, not %q", field))
		}
		return &Proximity{Field: field, TermA: tok.Value, TermB: second.Value, MaxWords: prox.Dist}

	default:
		if negate {
			p.errs = append(p.errs, syntaxErrorf(negatePos, "'!' must be followed by a literal"))
			return nil
		}
		if tok.Kind == TokenField || p.done() {
			return nil
		}
		p.errs = append(p.errs, syntaxErrorf(tok.Pos, "expected a literal, found %s", tok.Kind))
		p.next()
		return nil
	}
}
