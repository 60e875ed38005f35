package parser

import (
	"strings"

	"zilc/internal/ast"
	"zilc/internal/token"
)

func (p *Parser) posBase(t token.Token) ast.Base { return ast.Base{P: p.posOf(t)} }

// parseExpr parses one expression: a literal, variable reference, a
// parenthesised list, or a "<...>" form (generic or distinguished).
func (p *Parser) parseExpr() ast.Node {
	t := p.cur()
	switch t.Kind {
	case token.ATOM:
		p.advance()
		return &ast.Atom{Base: p.posBase(t), Name: t.Payload}
	case token.NUMBER:
		p.advance()
		return &ast.Number{Base: p.posBase(t), Value: t.Number}
	case token.STRING:
		p.advance()
		return &ast.String{Base: p.posBase(t), Text: t.Payload}
	case token.LOCAL_VAR:
		p.advance()
		return &ast.LocalVar{Base: p.posBase(t), Name: t.Payload}
	case token.GLOBAL_VAR:
		p.advance()
		return &ast.GlobalVar{Base: p.posBase(t), Name: t.Payload}
	case token.CHAR_LOCAL_VAR:
		p.advance()
		return &ast.CharLocalVar{Base: p.posBase(t), Name: t.Payload}
	case token.CHAR_GLOBAL_VAR:
		p.advance()
		return &ast.CharGlobalVar{Base: p.posBase(t), Name: t.Payload}
	case token.CHAR_LIT:
		p.advance()
		return &ast.Number{Base: p.posBase(t), Value: t.Number}
	case token.QUOTE:
		p.advance()
		inner := p.parseExpr()
		return &ast.Form{Base: p.posBase(t), Operator: "QUOTE", Operands: []ast.Node{inner}}
	case token.BACKTICK:
		p.advance()
		inner := p.parseExpr()
		return &ast.Quasiquote{Base: p.posBase(t), Expr: inner}
	case token.TILDE:
		p.advance()
		inner := p.parseExpr()
		return &ast.Unquote{Base: p.posBase(t), Expr: inner}
	case token.SPLICE:
		p.advance()
		inner := p.parseExpr()
		return &ast.SpliceUnquote{Base: p.posBase(t), Expr: inner}
	case token.LPAREN:
		return p.parseListExpr()
	case token.LANGLE:
		return p.parseNestedForm()
	case token.SEMICOLON:
		// ZILF synonym-list separator surfacing mid-expression: treat it as
		// an atom so list parsing can represent the separator positionally.
		p.advance()
		return &ast.Atom{Base: p.posBase(t), Name: ";"}
	default:
		p.fail(t, "unexpected token %v in expression", t.Kind)
	}
	panic("unreachable")
}

// parseListExpr parses a parenthesised list as a generic Form whose operator
// is "LIST"; callers that need routine-parameter or property-value
// semantics interpret the operand list themselves instead of calling this.
func (p *Parser) parseListExpr() ast.Node {
	start := p.expect(token.LPAREN)
	var items []ast.Node
	for p.kind() != token.RPAREN {
		if p.atEnd() {
			p.fail(p.cur(), "unclosed list")
		}
		items = append(items, p.parseExpr())
	}
	p.expect(token.RPAREN)
	return &ast.Form{Base: p.posBase(start), Operator: "LIST", Operands: items}
}

// parseNestedForm parses a "<...>" form occurring inside an expression
// context, recognising COND/REPEAT so later phases see the distinguished
// node kinds wherever they appear, not just at routine-body top level.
func (p *Parser) parseNestedForm() ast.Node {
	start := p.expect(token.LANGLE)
	op := p.opName()
	switch op {
	case "COND":
		p.advance()
		return p.parseCondBody(start)
	case "REPEAT":
		p.advance()
		return p.parseRepeatBody(start)
	default:
		p.advance()
		var operands []ast.Node
		for p.kind() != token.RANGLE {
			if p.atEnd() {
				p.fail(p.cur(), "unclosed form <%s ...>", op)
			}
			operands = append(operands, p.parseExpr())
		}
		p.expect(token.RANGLE)
		return &ast.Form{Base: p.posBase(start), Operator: op, Operands: operands}
	}
}

// parseGenericFormBody parses a top-level form's operands (operator atom
// already consumed) through the matching RANGLE into a generic Form,
// matching the parser's contract that every other "<...>" becomes a generic
// Form (spec section 4.3). The caller retains it in Program.TopForms so the
// macro expander can process a top-level call to a user macro.
func (p *Parser) parseGenericFormBody(start token.Token, op string) *ast.Form {
	f := &ast.Form{Base: p.posBase(start), Operator: op}
	for p.kind() != token.RANGLE {
		if p.atEnd() {
			p.fail(p.cur(), "unclosed top-level form <%s ...>", op)
		}
		f.Operands = append(f.Operands, p.parseExpr())
	}
	p.expect(token.RANGLE)
	return f
}

func (p *Parser) parseCondBody(start token.Token) *ast.Cond {
	cond := &ast.Cond{Base: p.posBase(start)}
	for p.kind() == token.LPAREN {
		p.advance()
		var test ast.Node
		if p.kind() == token.ATOM && (strings.EqualFold(p.cur().Payload, "T") ||
			strings.EqualFold(p.cur().Payload, "ELSE")) {
			tt := p.advance()
			test = &ast.Atom{Base: p.posBase(tt), Name: "T"}
		} else {
			test = p.parseExpr()
		}
		var body []ast.Node
		for p.kind() != token.RPAREN {
			body = append(body, p.parseExpr())
		}
		p.expect(token.RPAREN)
		cond.Clauses = append(cond.Clauses, ast.CondClause{Test: test, Body: body})
	}
	p.expect(token.RANGLE)
	return cond
}

func (p *Parser) parseRepeatBody(start token.Token) *ast.Repeat {
	rep := &ast.Repeat{Base: p.posBase(start)}
	if p.kind() == token.LPAREN {
		p.advance()
		for p.kind() != token.RPAREN {
			if p.kind() == token.LPAREN {
				p.advance()
				name := p.expect(token.ATOM).Payload
				var init ast.Node
				if p.kind() != token.RPAREN {
					init = p.parseExpr()
				}
				p.expect(token.RPAREN)
				rep.Bindings = append(rep.Bindings, ast.RepeatBinding{Name: name, Initial: init})
			} else {
				name := p.expect(token.ATOM).Payload
				rep.Bindings = append(rep.Bindings, ast.RepeatBinding{Name: name})
			}
		}
		p.expect(token.RPAREN)
	}
	for p.kind() != token.RANGLE {
		if p.atEnd() {
			p.fail(p.cur(), "unclosed REPEAT")
		}
		rep.Body = append(rep.Body, p.parseExpr())
	}
	p.expect(token.RANGLE)
	return rep
}

// parseRoutine parses <ROUTINE name (params "AUX" aux...) body...>, per the
// original compiler's routine grammar: a bare string "AUX" switches the
// parameter-list parser into aux-variable mode (grounded on
// zilc/parser/parser.py's parse_routine). An "OPTIONAL" marker switches into
// optional-parameter mode, each optional parameter optionally followed by a
// parenthesised default-value expression, mirroring FUNCTION's AUX handling
// in the macro evaluator (spec section 4.4).
func (p *Parser) parseRoutine(start token.Token) *ast.Routine {
	name := p.expect(token.ATOM).Payload
	r := &ast.Routine{Base: p.posBase(start), Name: name}
	if p.kind() == token.LPAREN {
		p.advance()
		mode := 0 // 0=required, 1=optional, 2=aux
		for p.kind() != token.RPAREN {
			if paramModeToken(p.cur()) {
				mode = paramMode(p.cur().Payload)
				p.advance()
				continue
			}
			switch mode {
			case 0:
				r.Required = append(r.Required, p.expect(token.ATOM).Payload)
			case 1:
				r.Optional = append(r.Optional, p.parseParamWithDefault())
			case 2:
				r.Aux = append(r.Aux, p.parseParamWithDefault())
			}
		}
		p.expect(token.RPAREN)
	}
	for p.kind() != token.RANGLE {
		if p.atEnd() {
			p.fail(p.cur(), "unclosed ROUTINE %s", name)
		}
		r.Body = append(r.Body, p.parseExpr())
	}
	p.expect(token.RANGLE)
	return r
}

// paramModeToken reports whether t is a mode marker, as either the bare
// atom AUX/OPTIONAL or (the conventional ZIL spelling) the quoted string
// "AUX"/"OPTIONAL".
func paramModeToken(t token.Token) bool {
	if t.Kind != token.ATOM && t.Kind != token.STRING {
		return false
	}
	return isParamModeKeyword(t.Payload)
}

func isParamModeKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "AUX", "OPTIONAL", "OPT":
		return true
	}
	return false
}

func paramMode(s string) int {
	switch strings.ToUpper(s) {
	case "AUX":
		return 2
	default:
		return 1
	}
}

// parseParamWithDefault parses either a bare NAME or a (NAME default-expr).
func (p *Parser) parseParamWithDefault() ast.Param {
	if p.kind() == token.LPAREN {
		p.advance()
		name := p.expect(token.ATOM).Payload
		var def ast.Node
		if p.kind() != token.RPAREN {
			def = p.parseExpr()
		}
		p.expect(token.RPAREN)
		return ast.Param{Name: name, Default: def}
	}
	return ast.Param{Name: p.expect(token.ATOM).Payload}
}

// parseProperties parses "(NAME value...)..." sequences shared by OBJECT
// and ROOM bodies. Every property keeps its values as a list, one node per
// expression, whether it has one value or several.
func (p *Parser) parseProperties() []ast.Property {
	var props []ast.Property
	for p.kind() == token.LPAREN {
		p.advance()
		name := p.expect(token.ATOM).Payload
		var vals []ast.Node
		for p.kind() != token.RPAREN {
			if p.atEnd() {
				p.fail(p.cur(), "unclosed property %s", name)
			}
			vals = append(vals, p.parseExpr())
		}
		p.expect(token.RPAREN)
		props = append(props, ast.Property{Name: name, Values: vals})
	}
	return props
}

func (p *Parser) parseObject(start token.Token) *ast.Object {
	name := p.expect(token.ATOM).Payload
	obj := &ast.Object{Base: p.posBase(start), Name: name}
	obj.Properties = p.parseProperties()
	p.expect(token.RANGLE)
	return obj
}

func (p *Parser) parseRoom(start token.Token) *ast.Room {
	name := p.expect(token.ATOM).Payload
	room := &ast.Room{Base: p.posBase(start), Name: name}
	room.Properties = p.parseProperties()
	p.expect(token.RANGLE)
	return room
}

func (p *Parser) parseGlobal(start token.Token) *ast.Global {
	name := p.expect(token.ATOM).Payload
	g := &ast.Global{Base: p.posBase(start), Name: name}
	if p.kind() != token.RANGLE {
		g.Initial = p.parseExpr()
	}
	p.expect(token.RANGLE)
	return g
}

func (p *Parser) parseConstant(start token.Token) *ast.Constant {
	name := p.expect(token.ATOM).Payload
	c := &ast.Constant{Base: p.posBase(start), Name: name}
	c.Value = p.parseExpr()
	p.expect(token.RANGLE)
	return c
}

// parseSyntax parses <SYNTAX pattern... = action-routine [verb-synonyms]>.
func (p *Parser) parseSyntax(start token.Token) *ast.Syntax {
	s := &ast.Syntax{Base: p.posBase(start)}
	for !(p.kind() == token.ATOM && p.cur().Payload == "=") {
		if p.atEnd() || p.kind() == token.RANGLE {
			p.fail(p.cur(), "expected '=' in SYNTAX")
		}
		if p.kind() == token.LPAREN {
			p.advance()
			var flags []string
			for p.kind() != token.RPAREN {
				flags = append(flags, p.expect(token.ATOM).Payload)
			}
			p.expect(token.RPAREN)
			s.ObjectFlags = append(s.ObjectFlags, flags)
			continue
		}
		s.Pattern = append(s.Pattern, p.expect(token.ATOM).Payload)
	}
	p.advance() // '='
	s.ActionRoutine = p.expect(token.ATOM).Payload
	for p.kind() == token.ATOM {
		s.VerbSynonyms = append(s.VerbSynonyms, p.advance().Payload)
	}
	p.expect(token.RANGLE)
	return s
}

func (p *Parser) parsePropdef(start token.Token) *ast.Propdef {
	name := p.expect(token.ATOM).Payload
	pd := &ast.Propdef{Base: p.posBase(start), Name: name}
	// A bare (non-parenthesised) value before the first pattern list is the
	// property's default; every parenthesised group after it is a pattern.
	if p.kind() != token.LPAREN && p.kind() != token.RANGLE {
		pd.Default = p.parseExpr()
	}
	for p.kind() == token.LPAREN {
		p.advance()
		var params []string
		for p.kind() == token.ATOM || p.kind() == token.LOCAL_VAR {
			if p.kind() == token.LOCAL_VAR {
				params = append(params, "."+p.advance().Payload)
			} else {
				params = append(params, p.advance().Payload)
			}
		}
		var body []ast.Node
		for p.kind() != token.RPAREN {
			body = append(body, p.parseExpr())
		}
		p.expect(token.RPAREN)
		pd.Patterns = append(pd.Patterns, ast.PropdefPattern{Params: params, Body: body})
	}
	p.expect(token.RANGLE)
	return pd
}

func (p *Parser) parseTable(start token.Token, kindName string) *ast.Table {
	tab := &ast.Table{Base: p.posBase(start)}
	switch kindName {
	case "ITABLE":
		tab.TKind = ast.ITABLE
	case "LTABLE":
		tab.TKind = ast.LTABLE
	default:
		tab.TKind = ast.TABLE
	}
	// Optional leading flags list: (FLAG FLAG...)
	if p.kind() == token.LPAREN {
		save := p.pos
		p.advance()
		var flags []string
		ok := true
		for p.kind() == token.ATOM {
			flags = append(flags, p.advance().Payload)
		}
		if p.kind() == token.RPAREN {
			p.advance()
			tab.Flags = flags
		} else {
			ok = false
		}
		if !ok {
			p.pos = save
		}
	}
	if tab.TKind == ast.ITABLE && (p.kind() == token.NUMBER || p.kind() == token.GLOBAL_VAR) {
		tab.Size = p.parseExpr()
	}
	for p.kind() != token.RANGLE {
		if p.atEnd() {
			p.fail(p.cur(), "unclosed table")
		}
		tab.Values = append(tab.Values, p.parseExpr())
	}
	p.expect(token.RANGLE)
	return tab
}

// parseMacroDef parses <DEFMAC name (params...) body...>. Parameter
// classification follows the convention documented in DESIGN.md: a bare
// atom is a required quoted parameter (macro arguments are never evaluated
// before substitution); an atom wrapped in its own parens, e.g. "(REST)",
// is a tuple parameter that absorbs every remaining argument; "AUX" and
// "OPTIONAL" switch parsing mode exactly as in parseRoutine.
func (p *Parser) parseMacroDef(start token.Token) *ast.Macro {
	name := p.expect(token.ATOM).Payload
	m := &ast.Macro{Base: p.posBase(start), Name: name}
	if p.kind() == token.LPAREN {
		p.advance()
		mode := ast.ParamQuoted
		for p.kind() != token.RPAREN {
			if paramModeToken(p.cur()) {
				switch strings.ToUpper(p.cur().Payload) {
				case "AUX":
					mode = ast.ParamAux
				default:
					mode = ast.ParamOptional
				}
				p.advance()
				continue
			}
			if p.kind() == token.LPAREN {
				p.advance()
				nm := p.expect(token.ATOM).Payload
				p.expect(token.RPAREN)
				m.Params = append(m.Params, ast.MacroParam{Name: nm, PKind: ast.ParamTuple})
				continue
			}
			nm := p.expect(token.ATOM).Payload
			m.Params = append(m.Params, ast.MacroParam{Name: nm, PKind: mode})
		}
		p.expect(token.RPAREN)
	}
	for p.kind() != token.RANGLE {
		if p.atEnd() {
			p.fail(p.cur(), "unclosed DEFMAC %s", name)
		}
		m.Body = append(m.Body, p.parseExpr())
	}
	p.expect(token.RANGLE)
	return m
}
