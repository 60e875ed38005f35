// Package parser builds a tagged AST (internal/ast) from a token stream by
// recursive descent, per spec section 4.3. It distinguishes the built-in
// forms enumerated in spec section 3 by operator atom and dispatches to a
// specialised parser for each; every other "<...>" becomes a generic Form.
package parser

import (
	"strings"

	"zilc/internal/ast"
	"zilc/internal/token"
	"zilc/internal/zerr"
)

// Parser is a single-pass recursive-descent parser over a token slice.
type Parser struct {
	toks []token.Token
	pos  int
}

// New creates a Parser over toks, as produced by internal/lexer.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// ParseSingleExpr parses one expression from toks, used by the macro
// evaluator's PARSE operation (spec section 4.4) which evaluates a single
// form rather than a whole program.
func ParseSingleExpr(toks []token.Token) (n ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*zerr.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	p := New(toks)
	n = p.parseExpr()
	return n, nil
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) kind() token.Kind  { return p.toks[p.pos].Kind }
func (p *Parser) atEnd() bool       { return p.kind() == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) posOf(t token.Token) ast.Position {
	return ast.Position{File: t.File, Line: t.Line, Column: t.Column}
}

func (p *Parser) fail(t token.Token, format string, args ...any) {
	panic(zerr.At(zerr.Syntax, t.File, t.Line, t.Column, format, args...))
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.kind() != k {
		p.fail(p.cur(), "expected %v, got %v(%q)", k, p.kind(), p.cur().Payload)
	}
	return p.advance()
}

// ParseProgram parses the whole token stream into a Program.
func (p *Parser) ParseProgram() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*zerr.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	prog = ast.NewProgram()
	for !p.atEnd() {
		p.skipSeparators()
		if p.atEnd() {
			break
		}
		p.expect(token.LANGLE)
		p.parseTopForm(prog)
	}
	return prog, nil
}

// skipSeparators discards stray SEMICOLON tokens that can surface between
// top-level forms when the lexer is fed ZILF synonym-list notation outside
// any enclosing paren context.
func (p *Parser) skipSeparators() {
	for p.kind() == token.SEMICOLON {
		p.advance()
	}
}

func (p *Parser) opName() string {
	if p.kind() != token.ATOM {
		p.fail(p.cur(), "expected operator atom, got %v", p.kind())
	}
	return strings.ToUpper(p.cur().Payload)
}

// parseTopForm is called right after consuming the opening LANGLE of a
// top-level form; it dispatches on the operator atom and consumes through
// the matching RANGLE.
func (p *Parser) parseTopForm(prog *ast.Program) {
	startTok := p.cur()
	op := p.opName()
	switch op {
	case "ROUTINE":
		p.advance()
		prog.Routines = append(prog.Routines, p.parseRoutine(startTok))
	case "OBJECT":
		p.advance()
		prog.Objects = append(prog.Objects, p.parseObject(startTok))
	case "ROOM":
		p.advance()
		prog.Rooms = append(prog.Rooms, p.parseRoom(startTok))
	case "GLOBAL":
		p.advance()
		prog.Globals = append(prog.Globals, p.parseGlobal(startTok))
	case "CONSTANT":
		p.advance()
		prog.Constants = append(prog.Constants, p.parseConstant(startTok))
	case "SYNTAX":
		p.advance()
		prog.Syntaxes = append(prog.Syntaxes, p.parseSyntax(startTok))
	case "PROPDEF":
		p.advance()
		prog.Propdefs = append(prog.Propdefs, p.parsePropdef(startTok))
	case "TABLE", "ITABLE", "LTABLE":
		p.advance()
		prog.Tables = append(prog.Tables, p.parseTable(startTok, op))
	case "DEFMAC":
		p.advance()
		prog.Macros = append(prog.Macros, p.parseMacroDef(startTok))
	case "VERSION":
		p.advance()
		p.parseVersion(prog, startTok)
	case "BUZZ":
		p.advance()
		prog.Buzzwords = append(prog.Buzzwords, p.parseAtomList()...)
		p.expect(token.RANGLE)
	case "SYNONYM":
		p.advance()
		prog.Synonyms = append(prog.Synonyms, p.parseAtomList())
		p.expect(token.RANGLE)
	case "BIT-SYNONYM":
		p.advance()
		orig := p.expect(token.ATOM).Payload
		alias := p.expect(token.ATOM).Payload
		prog.BitSynonyms = append(prog.BitSynonyms, ast.BitSynonym{Orig: orig, Alias: alias})
		p.expect(token.RANGLE)
	case "PREP-SYNONYM":
		p.advance()
		canon := p.expect(token.ATOM).Payload
		syns := p.parseAtomList()
		prog.PrepSynonyms = append(prog.PrepSynonyms, ast.PrepSynonym{Canonical: canon, Synonyms: syns})
		p.expect(token.RANGLE)
	case "REMOVE-SYNONYM":
		p.advance()
		prog.RemoveSynonyms = append(prog.RemoveSynonyms, p.expect(token.ATOM).Payload)
		p.expect(token.RANGLE)
	case "DIRECTIONS":
		p.advance()
		prog.Directions = append(prog.Directions, p.parseAtomList()...)
		p.expect(token.RANGLE)
	case "ORDER-OBJECTS?":
		p.advance()
		prog.ObjectOrder = p.parseOrderPolicy()
		p.expect(token.RANGLE)
	case "ORDER-TREE?":
		p.advance()
		prog.TreeOrder = p.parseOrderPolicy()
		p.expect(token.RANGLE)
	case "LONG-WORDS?":
		p.advance()
		prog.LongWords = p.parseBoolAtom()
		p.expect(token.RANGLE)
	case "TELL-TOKENS":
		p.advance()
		prog.TellTokens = append(prog.TellTokens, p.parseTellTokens()...)
		p.expect(token.RANGLE)
	case "DEFINE-GLOBALS":
		p.advance()
		prog.DefineGlobals = append(prog.DefineGlobals, p.parseDefineGlobals(startTok))
	default:
		// Unrecognised top-level directive/form: keep it as a generic Form
		// so the macro expander can still process a call to a user macro
		// whose expansion produces definitions.
		p.advance()
		prog.TopForms = append(prog.TopForms, p.parseGenericFormBody(startTok, op))
	}
}

func (p *Parser) parseAtomList() []string {
	var out []string
	for p.kind() == token.ATOM {
		out = append(out, p.advance().Payload)
	}
	return out
}

func (p *Parser) parseBoolAtom() bool {
	if p.kind() == token.ATOM {
		v := p.advance().Payload
		return !strings.EqualFold(v, "<>") && v != ""
	}
	if p.kind() == token.LANGLE {
		// <> literal
		p.advance()
		p.expect(token.RANGLE)
		return false
	}
	return true
}

func (p *Parser) parseOrderPolicy() ast.ObjectOrderPolicy {
	name := strings.ToUpper(p.expect(token.ATOM).Payload)
	switch name {
	case "ROOMS-FIRST":
		return ast.OrderRoomsFirst
	case "REVERSE-DEFINED":
		return ast.OrderReverseDefined
	default:
		return ast.OrderDefined
	}
}

func (p *Parser) parseVersion(prog *ast.Program, start token.Token) {
	name := p.advance()
	var v int
	switch strings.ToUpper(name.Payload) {
	case "ZIP":
		v = 3
	case "EZIP":
		v = 4
	case "XZIP":
		v = 5
	case "YZIP":
		v = 6
	default:
		if name.Kind == token.NUMBER {
			v = int(name.Number)
		} else {
			v = 3
		}
	}
	prog.Version = v
	prog.VersionSet = true
	p.expect(token.RANGLE)
}

func (p *Parser) parseTellTokens() []ast.TellToken {
	var out []ast.TellToken
	for p.kind() == token.LPAREN {
		p.advance()
		tok := p.expect(token.ATOM).Payload
		var body []ast.Node
		for p.kind() != token.RPAREN {
			body = append(body, p.parseExpr())
		}
		p.expect(token.RPAREN)
		out = append(out, ast.TellToken{Token: tok, Expansion: body})
	}
	return out
}

func (p *Parser) parseDefineGlobals(start token.Token) *ast.DefineGlobals {
	table := p.expect(token.ATOM).Payload
	dg := &ast.DefineGlobals{Base: ast.Base{P: p.posOf(start)}, Table: table}
	for p.kind() == token.LPAREN {
		p.advance()
		name := p.expect(token.ATOM).Payload
		kind := ""
		if p.kind() == token.ATOM && strings.EqualFold(p.cur().Payload, "BYTE") {
			kind = "BYTE"
			p.advance()
		}
		val := p.parseExpr()
		p.expect(token.RPAREN)
		dg.Entries = append(dg.Entries, ast.DefineGlobalEntry{Name: name, Kind: kind, Value: val})
	}
	p.expect(token.RANGLE)
	return dg
}

