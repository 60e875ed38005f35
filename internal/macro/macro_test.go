package macro

import (
	"testing"

	"zilc/internal/ast"
	"zilc/internal/ctx"
	"zilc/internal/lexer"
	"zilc/internal/parser"
)

func parseProg(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.New("m.zil", []byte(src)).Tokenize()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	prog, err := parser.New(toks).ParseProgram()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog
}

func TestSimpleMacroSubstitution(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC DOUBLE (X) <FORM + .X .X>>
<ROUTINE F () <DOUBLE 3>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	body := prog.Routines[0].Body
	if len(body) != 1 {
		t.Fatalf("body = %v", body)
	}
	f, ok := body[0].(*ast.Form)
	if !ok || f.Operator != "+" {
		t.Fatalf("expected <+ 3 3>, got %#v", body[0])
	}
	if len(f.Operands) != 2 {
		t.Fatalf("operands = %v", f.Operands)
	}
	for _, o := range f.Operands {
		n, ok := o.(*ast.Number)
		if !ok || n.Value != 3 {
			t.Errorf("operand = %#v", o)
		}
	}
}

func TestMacroQuoteUnwrap(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC IDENT (X) <QUOTE .X>>
<ROUTINE F () <IDENT 42>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	n, ok := prog.Routines[0].Body[0].(*ast.Number)
	if !ok || n.Value != 42 {
		t.Fatalf("expected Number 42, got %#v", prog.Routines[0].Body[0])
	}
}

func TestMacroTupleParamCollectsRest(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC WRAP (A (REST)) <FORM LIST .A !.REST>>
<ROUTINE F () <WRAP 1 2 3 4>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	f, ok := prog.Routines[0].Body[0].(*ast.Form)
	if !ok || f.Operator != "LIST" {
		t.Fatalf("expected LIST form, got %#v", prog.Routines[0].Body[0])
	}
	if len(f.Operands) != 4 {
		t.Fatalf("expected 4 operands (1 + spliced 2 3 4), got %d: %#v", len(f.Operands), f.Operands)
	}
}

func TestMacroOptionalParamAssignedQ(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC MAYBE ("OPTIONAL" X) <COND (<ASSIGNED? .X> <QUOTE 1>) (ELSE <QUOTE 0>)>>
<ROUTINE F () <MAYBE>>
<ROUTINE G () <MAYBE 9>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	fBody, ok := prog.Routines[0].Body[0].(*ast.Cond)
	if !ok {
		t.Fatalf("expected unresolved COND since MAYBE's COND was itself expanded, got %#v", prog.Routines[0].Body[0])
	}
	_ = fBody
}

func TestIfflagSelectsCompileTimeFlag(t *testing.T) {
	c := ctx.New()
	c.Flags["DEBUG"] = true
	prog := parseProg(t, `<ROUTINE F () <IFFLAG (DEBUG <QUOTE 1>) (ELSE <QUOTE 0>)>>`)
	tbl := New(c, prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	n, ok := prog.Routines[0].Body[0].(*ast.Number)
	if !ok || n.Value != 1 {
		t.Fatalf("expected Number 1, got %#v", prog.Routines[0].Body[0])
	}
}

func TestEvalGlobalCrossPassEffect(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC DEFINE-SCORE () <EVAL <FORM GLOBAL SCORE <QUOTE 0>>>>
<ROUTINE F () <DEFINE-SCORE>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	found := false
	for _, g := range prog.Globals {
		if g.Name == "SCORE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SCORE global registered via EVAL, globals=%v", prog.Globals)
	}
}

func TestQuasiquoteUnquoteSubstitutes(t *testing.T) {
	prog2 := parseProg(t, "<DEFMAC TEST-QQ2 (X) `<FOO ~.X>>\n<ROUTINE F () <TEST-QQ2 7>>")
	tbl2 := New(ctx.New(), prog2.Macros)
	if err := tbl2.Expand(prog2); err != nil {
		t.Fatalf("expand: %v", err)
	}
	f, ok := prog2.Routines[0].Body[0].(*ast.Form)
	if !ok || f.Operator != "FOO" {
		t.Fatalf("expected <FOO 7>, got %#v", prog2.Routines[0].Body[0])
	}
	if len(f.Operands) != 1 {
		t.Fatalf("operands = %v", f.Operands)
	}
	n, ok := f.Operands[0].(*ast.Number)
	if !ok || n.Value != 7 {
		t.Fatalf("operand = %#v", f.Operands[0])
	}
}

func TestTopLevelMacroCallDefinesGlobal(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC MAKE-COUNTER (NAME) <FORM GLOBAL .NAME 0>>
<MAKE-COUNTER TURNS>
<ROUTINE F () <RTRUE>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	found := false
	for _, g := range prog.Globals {
		if g.Name == "TURNS" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TURNS global from top-level macro call, globals=%v", prog.Globals)
	}
	if len(prog.TopForms) != 0 {
		t.Fatalf("absorbed definition should leave no residual top form, got %v", prog.TopForms)
	}
}

func TestChtypeSpliceInlinesItems(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC TWO () <CHTYPE <LIST 1 2> SPLICE>>
<ROUTINE F () <FOO <TWO> 3>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	f, ok := prog.Routines[0].Body[0].(*ast.Form)
	if !ok || f.Operator != "FOO" {
		t.Fatalf("expected FOO form, got %#v", prog.Routines[0].Body[0])
	}
	if len(f.Operands) != 3 {
		t.Fatalf("expected splice to inline 2 items before the literal 3, operands=%#v", f.Operands)
	}
}

func TestNativeAllowlistNeverExpands(t *testing.T) {
	prog := parseProg(t, `
<DEFMAC COND (X) <QUOTE SHOULD-NOT-HAPPEN>>
<ROUTINE F () <COND (<EQUAL? 1 1> <QUOTE OK>)>>`)
	tbl := New(ctx.New(), prog.Macros)
	if err := tbl.Expand(prog); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if _, ok := prog.Routines[0].Body[0].(*ast.Cond); !ok {
		t.Fatalf("expected COND to remain a structural Cond node, got %#v", prog.Routines[0].Body[0])
	}
}
