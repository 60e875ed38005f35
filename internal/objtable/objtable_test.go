package objtable

import (
	"testing"

	"zilc/internal/ast"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/ztext"
)

func buildProgram(t *testing.T) *ast.Program {
	t.Helper()
	prog := ast.NewProgram()
	prog.Version = 3
	prog.Rooms = []*ast.Room{
		{Name: "FOREST", Properties: []ast.Property{
			{Name: "DESC", Values: []ast.Node{&ast.String{Text: "Forest"}}},
		}},
	}
	prog.Objects = []*ast.Object{
		{Name: "LEAF", Properties: []ast.Property{
			{Name: "DESC", Values: []ast.Node{&ast.String{Text: "leaf"}}},
			{Name: "IN", Values: []ast.Node{&ast.Atom{Name: "FOREST"}}},
			{Name: "FLAGS", Values: []ast.Node{&ast.Atom{Name: "TAKEBIT"}}},
			{Name: "SYNONYM", Values: []ast.Node{&ast.Atom{Name: "LEAF"}}},
		}},
	}
	return prog
}

func TestObjectTableBasicLayout(t *testing.T) {
	prog := buildProgram(t)
	sym, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}
	enc := ztext.NewEncoder(prog.Version)
	pool := strtab.New(enc)

	built := Build(sym, prog, pool, enc, nil)
	if built.DefaultsLen != sym.MaxProperties*2 {
		t.Fatalf("defaults length = %d, want %d", built.DefaultsLen, sym.MaxProperties*2)
	}
	if built.EntrySize != 9 {
		t.Fatalf("entry size = %d, want 9 for V3", built.EntrySize)
	}
	if len(built.PropPtrFixups) != 2 {
		t.Fatalf("expected one property-pointer fixup per object, got %d", len(built.PropPtrFixups))
	}
	for _, off := range built.PropPtrFixups {
		ptr := int(built.Bytes[off])<<8 | int(built.Bytes[off+1])
		if ptr <= 0 || ptr >= len(built.Bytes) {
			t.Fatalf("property pointer %d out of range", ptr)
		}
	}
}

func TestObjectTableAttributeBit(t *testing.T) {
	prog := buildProgram(t)
	sym, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}
	enc := ztext.NewEncoder(prog.Version)
	pool := strtab.New(enc)
	built := Build(sym, prog, pool, enc, nil)

	leafNum := sym.Objects["LEAF"]
	entryStart := built.DefaultsLen + (leafNum-1)*built.EntrySize
	bit, ok := sym.Attributes["TAKEBIT"]
	if !ok {
		t.Fatal("TAKEBIT attribute not assigned")
	}
	byteIdx := bit / 8
	mask := byte(0x80 >> uint(bit%8))
	if built.Bytes[entryStart+byteIdx]&mask == 0 {
		t.Fatal("TAKEBIT attribute bit not set on LEAF")
	}
}

func TestDictionaryIndexesEachAddedWord(t *testing.T) {
	enc := ztext.NewEncoder(3)
	d := New(enc)
	d.add("take", roleVerb, 1)
	d.add("get", roleVerb, 1)
	d.Finalize()

	if _, ok := d.Index("take"); !ok {
		t.Fatal("take not indexed")
	}
	if _, ok := d.Index("get"); !ok {
		t.Fatal("get not indexed")
	}
}

func TestDictionaryBuildFromSyntax(t *testing.T) {
	prog := ast.NewProgram()
	prog.Version = 3
	prog.Syntaxes = []*ast.Syntax{
		{Pattern: []string{"TAKE", "OBJECT", "WITH", "OBJECT"}, VerbSynonyms: []string{"GET"}},
	}
	enc := ztext.NewEncoder(3)
	d := BuildDictionary(enc, prog)
	bytes := d.Finalize()
	if len(bytes) == 0 {
		t.Fatal("expected non-empty dictionary table")
	}
	if _, ok := d.Index("take"); !ok {
		t.Fatal("take not in dictionary")
	}
	if _, ok := d.Index("get"); !ok {
		t.Fatal("get synonym not in dictionary")
	}
	if _, ok := d.Index("with"); !ok {
		t.Fatal("preposition token not in dictionary")
	}
	if _, ok := d.Index("object"); ok {
		t.Fatal("OBJECT placeholder should not become a dictionary word")
	}
}

func TestDictionaryTypeByteUnionsRoles(t *testing.T) {
	prog := ast.NewProgram()
	prog.Version = 3
	prog.Syntaxes = []*ast.Syntax{{Pattern: []string{"TAKE"}}}
	prog.Objects = []*ast.Object{
		{Name: "THING", Properties: []ast.Property{
			{Name: "SYNONYM", Values: []ast.Node{&ast.Atom{Name: "TAKE"}}},
		}},
	}
	enc := ztext.NewEncoder(3)
	d := BuildDictionary(enc, prog)
	bytes := d.Finalize()

	id, ok := d.Index("take")
	if !ok {
		t.Fatal("take not in dictionary")
	}
	off, ok := d.EntryOffset(id)
	if !ok {
		t.Fatal("take has no resolved offset")
	}
	flagsByte := bytes[off+d.enc.DictWordCount()*2]
	if flagsByte&roleVerb == 0 {
		t.Fatalf("expected roleVerb set in type byte, got %#x", flagsByte)
	}
	if flagsByte&roleNoun == 0 {
		t.Fatalf("expected roleNoun set in type byte (merged SYNONYM), got %#x", flagsByte)
	}
}

func TestDictionaryHeaderFields(t *testing.T) {
	enc := ztext.NewEncoder(3)
	prog := ast.NewProgram()
	prog.Syntaxes = []*ast.Syntax{{Pattern: []string{"LOOK"}}}
	d := BuildDictionary(enc, prog)
	out := d.Finalize()

	sepCount := int(out[0])
	if sepCount != len(defaultSeparators) {
		t.Fatalf("separator count = %d, want %d", sepCount, len(defaultSeparators))
	}
	entryLen := int(out[1+sepCount])
	if entryLen != d.entryWidth() {
		t.Fatalf("entry length = %d, want %d", entryLen, d.entryWidth())
	}
	wordCount := int(out[1+sepCount+1])<<8 | int(out[1+sepCount+2])
	if wordCount != len(d.order) {
		t.Fatalf("word count = %d, want %d", wordCount, len(d.order))
	}
}
