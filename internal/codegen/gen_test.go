package codegen

import (
	"bytes"
	"testing"

	"zilc/internal/ast"
	"zilc/internal/ctx"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/ztext"
)

func newGen(t *testing.T, prog *ast.Program) *Gen {
	t.Helper()
	sym, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}
	enc := ztext.NewEncoder(prog.Version)
	return New(sym, strtab.New(enc), nil, Config{Version: prog.Version}, ctx.New())
}

func TestRoutineQuitCompilesTo0OP(t *testing.T) {
	prog := ast.NewProgram()
	r := &ast.Routine{Name: "GO", Body: []ast.Node{&ast.Form{Operator: "QUIT"}}}
	prog.Routines = []*ast.Routine{r}
	g := newGen(t, prog)
	cr, err := g.Routine(r)
	if err != nil {
		t.Fatalf("Routine: %v", err)
	}
	if cr.LocalCount != 0 || len(cr.Header) != 1 || cr.Header[0] != 0 {
		t.Fatalf("header = %v, want single zero local-count byte", cr.Header)
	}
	// QUIT (0OP:10) followed by the implicit fall-off RFALSE (0OP:1).
	want := []byte{0xBA, 0xB1}
	if !bytes.Equal(cr.Body.Bytes, want) {
		t.Fatalf("body = %#v, want %#v", cr.Body.Bytes, want)
	}
}

func TestRoutineHeaderCarriesDefaultsBelowV5(t *testing.T) {
	prog := ast.NewProgram()
	prog.Version = 3
	r := &ast.Routine{Name: "GO",
		Optional: []ast.Param{{Name: "X", Default: &ast.Number{Value: 9}}},
		Body:     []ast.Node{&ast.Form{Operator: "RTRUE"}}}
	prog.Routines = []*ast.Routine{r}
	g := newGen(t, prog)
	cr, err := g.Routine(r)
	if err != nil {
		t.Fatalf("Routine: %v", err)
	}
	want := []byte{1, 0, 9} // local count, one 16-bit default
	if !bytes.Equal(cr.Header, want) {
		t.Fatalf("header = %v, want %v", cr.Header, want)
	}
}

func TestCondCompilesToBranchPastBody(t *testing.T) {
	prog := ast.NewProgram()
	r := &ast.Routine{Name: "GO", Required: []string{"X"}, Body: []ast.Node{
		&ast.Cond{Clauses: []ast.CondClause{{
			Test: &ast.Form{Operator: "ZERO?", Operands: []ast.Node{&ast.LocalVar{Name: "X"}}},
			Body: []ast.Node{&ast.Form{Operator: "RTRUE"}},
		}}},
	}}
	prog.Routines = []*ast.Routine{r}
	g := newGen(t, prog)
	cr, err := g.Routine(r)
	if err != nil {
		t.Fatalf("Routine: %v", err)
	}
	// jz local1 (1OP:0, variable form), branch-on-false past RTRUE, then
	// the implicit fall-off RFALSE.
	want := []byte{0xA0, 0x01, 0x00, 0x03, 0xB0, 0xB1}
	if !bytes.Equal(cr.Body.Bytes, want) {
		t.Fatalf("body = %#v, want %#v", cr.Body.Bytes, want)
	}
}

func TestRepeatCompilesToBackwardJump(t *testing.T) {
	prog := ast.NewProgram()
	r := &ast.Routine{Name: "GO", Body: []ast.Node{
		&ast.Repeat{Body: []ast.Node{&ast.Form{Operator: "CRLF"}}},
	}}
	prog.Routines = []*ast.Routine{r}
	g := newGen(t, prog)
	cr, err := g.Routine(r)
	if err != nil {
		t.Fatalf("Routine: %v", err)
	}
	// CRLF at the loop top, then jump (1OP:12) with a backward offset
	// re-entering it; the offset bytes are patched in place.
	if cr.Body.Bytes[0] != 0xBB {
		t.Fatalf("expected CRLF at loop top, got %#02x", cr.Body.Bytes[0])
	}
	if cr.Body.Bytes[1] != 0x8C {
		t.Fatalf("expected jump opcode after the body, got %#02x", cr.Body.Bytes[1])
	}
	off := int16(uint16(cr.Body.Bytes[2])<<8 | uint16(cr.Body.Bytes[3]))
	if off >= 0 {
		t.Fatalf("expected a negative (backward) jump offset, got %d", off)
	}
}

func TestTellLowersToPrimitivePrints(t *testing.T) {
	prog := ast.NewProgram()
	prog.Globals = []*ast.Global{{Name: "SCORE"}}
	r := &ast.Routine{Name: "GO", Body: []ast.Node{
		&ast.Form{Operator: "TELL", Operands: []ast.Node{
			&ast.String{Text: "hi"},
			&ast.Atom{Name: "N"}, &ast.GlobalVar{Name: "SCORE"},
			&ast.Atom{Name: "CR"},
		}},
	}}
	prog.Routines = []*ast.Routine{r}
	g := newGen(t, prog)
	cr, err := g.Routine(r)
	if err != nil {
		t.Fatalf("Routine: %v", err)
	}
	b := cr.Body.Bytes
	if b[0] != 0xB2 {
		t.Fatalf("expected inline PRINTI (0OP:2) first, got %#02x", b[0])
	}
	// The literal "hi" packs into one terminated word; print_num (VAR:6)
	// and new_line (0OP:11) follow.
	rest := b[3:]
	if rest[0] != 0xE6 {
		t.Fatalf("expected print_num (VAR:6) after the literal, got %#02x", rest[0])
	}
	if rest[len(rest)-2] != 0xBB {
		t.Fatalf("expected new_line before the fall-off return, got %#02x", rest[len(rest)-2])
	}
}

func TestDefineGlobalsTableMixesByteAndWordEntries(t *testing.T) {
	prog := ast.NewProgram()
	dg := &ast.DefineGlobals{Table: "GLOBAL-TBL", Entries: []ast.DefineGlobalEntry{
		{Name: "FULL", Value: &ast.Number{Value: 0x1234}},
		{Name: "TINY", Kind: "BYTE", Value: &ast.Number{Value: 7}},
	}}
	prog.DefineGlobals = []*ast.DefineGlobals{dg}
	g := newGen(t, prog)
	buf := g.DefineGlobalsTable(dg)
	want := []byte{0x12, 0x34, 7}
	if !bytes.Equal(buf.Bytes, want) {
		t.Fatalf("table bytes = %#v, want %#v", buf.Bytes, want)
	}
}
