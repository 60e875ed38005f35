package assemble

import (
	"testing"

	"zilc/internal/ast"
	"zilc/internal/codegen"
	"zilc/internal/ctx"
	"zilc/internal/objtable"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/ztext"
)

// packedToByteAddress inverts internal/assemble's packedAddress for the
// fixed-divisor versions (1-5, 8) this test targets.
func packedToByteAddress(p uint16, v int) int {
	return int(p) * packedDivisor(v)
}

func buildMinimalInput(t *testing.T) *Input {
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
	prog.Syntaxes = []*ast.Syntax{
		{Pattern: []string{"LOOK"}},
	}
	prog.Routines = []*ast.Routine{
		{Name: "GO", Body: []ast.Node{
			&ast.Form{Operator: "PRINTI", Operands: []ast.Node{&ast.String{Text: "Hello"}}},
			&ast.Form{Operator: "CRLF"},
			&ast.Form{Operator: "QUIT"},
		}},
	}

	sym, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}

	enc := ztext.NewEncoder(prog.Version)
	pool := strtab.New(enc)
	dict := objtable.BuildDictionary(enc, prog)

	gen := codegen.New(sym, pool, dict, codegen.Config{Version: prog.Version}, ctx.New())

	var routines []*codegen.Routine
	for _, r := range prog.Routines {
		compiled, err := gen.Routine(r)
		if err != nil {
			t.Fatalf("gen.Routine(%s): %v", r.Name, err)
		}
		routines = append(routines, compiled)
	}

	obj := objtable.Build(sym, prog, pool, enc, dict)

	return &Input{
		Prog:     prog,
		Sym:      sym,
		Gen:      gen,
		Routines: routines,
		Obj:      obj,
		Dict:     dict,
		Pool:     pool,
		Enc:      enc,
	}
}

func TestAssembleProducesWellFormedHeader(t *testing.T) {
	in := buildMinimalInput(t)
	img, lay, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(img) < 64 {
		t.Fatalf("story image too short: %d bytes", len(img))
	}
	if img[0x00] != byte(in.Sym.Version) {
		t.Fatalf("header version = %d, want %d", img[0x00], in.Sym.Version)
	}
	if lay.FileLength == 0 {
		t.Fatal("expected non-zero file length in layout")
	}
	gotLen := int(img[0x1A])<<8 | int(img[0x1B])
	if gotLen != lay.FileLength {
		t.Fatalf("header file length = %d, want %d", gotLen, lay.FileLength)
	}

	checksum := uint16(0)
	for _, b := range img[0x40:] {
		checksum += uint16(b)
	}
	gotChecksum := uint16(int(img[0x1C])<<8 | int(img[0x1D]))
	if gotChecksum != checksum {
		t.Fatalf("header checksum = %d, want %d", gotChecksum, checksum)
	}
}

func TestAssembleInitialPCPointsPastRoutineHeader(t *testing.T) {
	in := buildMinimalInput(t)
	img, lay, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	pc := int(img[0x06])<<8 | int(img[0x07])
	if pc <= lay.RoutinesBase {
		t.Fatalf("initial PC %d should land inside the routines region (base %d)", pc, lay.RoutinesBase)
	}
	if pc >= len(img) {
		t.Fatalf("initial PC %d falls outside the story image", pc)
	}
}

func TestAssembleRejectsMissingGoRoutine(t *testing.T) {
	in := buildMinimalInput(t)
	in.Routines = nil
	in.Gen.RoutineOrder = nil
	if _, _, err := Assemble(in); err == nil {
		t.Fatal("expected an error when no GO routine is present")
	}
}

func TestAssembleDictionaryBaseIsWordAligned(t *testing.T) {
	in := buildMinimalInput(t)
	_, lay, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if lay.DictBase%2 != 0 {
		t.Fatalf("dictionary base %d is not word-aligned", lay.DictBase)
	}
	if lay.ObjectBase%2 != 0 {
		t.Fatalf("object table base %d is not word-aligned", lay.ObjectBase)
	}
}

// TestAssembleRoutineBasesAlignedToPackedDivisor locks in that every
// routine starts on a packed-address boundary regardless of version: an
// odd-length predecessor routine must not shift the next routine onto an
// address its packed form cannot represent (spec section 3's alignment
// invariant and section 8 testable property 3).
func TestAssembleRoutineBasesAlignedToPackedDivisor(t *testing.T) {
	for _, v := range []int{3, 5, 8} {
		prog := ast.NewProgram()
		prog.Version = v
		prog.Routines = []*ast.Routine{
			{Name: "HELPER", Body: []ast.Node{&ast.Form{Operator: "RTRUE"}}},
			{Name: "GO", Body: []ast.Node{
				&ast.Form{Operator: "HELPER"},
				&ast.Form{Operator: "QUIT"},
			}},
		}
		sym, err := symtab.Build(prog)
		if err != nil {
			t.Fatalf("v%d: symtab.Build: %v", v, err)
		}
		enc := ztext.NewEncoder(v)
		pool := strtab.New(enc)
		dict := objtable.BuildDictionary(enc, prog)
		gen := codegen.New(sym, pool, dict, codegen.Config{Version: v}, ctx.New())
		var routines []*codegen.Routine
		for _, r := range prog.Routines {
			cr, err := gen.Routine(r)
			if err != nil {
				t.Fatalf("v%d: gen.Routine(%s): %v", v, r.Name, err)
			}
			routines = append(routines, cr)
		}
		obj := objtable.Build(sym, prog, pool, enc, dict)
		in := &Input{Prog: prog, Sym: sym, Gen: gen, Routines: routines, Obj: obj, Dict: dict, Pool: pool, Enc: enc}
		img, lay, err := Assemble(in)
		if err != nil {
			t.Fatalf("v%d: Assemble: %v", v, err)
		}
		div := packedDivisor(v)
		if lay.RoutinesBase%div != 0 {
			t.Errorf("v%d: routines base %d not aligned to %d", v, lay.RoutinesBase, div)
		}
		// The GO routine's call to HELPER must resolve to HELPER's exact
		// header byte: read the call_vn operand out of the image and check
		// the byte it reaches holds HELPER's local count.
		pc := int(img[0x06])<<8 | int(img[0x07])
		if img[pc]&0xE0 != 0xE0 {
			t.Fatalf("v%d: expected a VAR-form call at the initial PC, got %#02x", v, img[pc])
		}
		packed := int(img[pc+2])<<8 | int(img[pc+3])
		callee := packed * div
		if img[callee] != 0 {
			t.Errorf("v%d: packed call target %d does not land on HELPER's 0-local header byte", v, callee)
		}
	}
}

// TestAssemblePrintPaddrRoundTripsDistinctStrings pins down the
// ID/Offset split internal/strtab.Pool and internal/objtable.Dictionary
// use: a relocation captured during code generation (before any region
// has a final address) must still land on the right string once assembly
// resolves it, not on whatever entry happened to be first in the pool
// (spec section 8 testable property 4: "For every PRINT_PADDR, the
// pointed-to bytes decode ... to the original literal").
func TestAssemblePrintPaddrRoundTripsDistinctStrings(t *testing.T) {
	prog := ast.NewProgram()
	prog.Version = 3
	prog.Routines = []*ast.Routine{
		{Name: "HELPER", Body: []ast.Node{
			&ast.Form{Operator: "PRINTI", Operands: []ast.Node{&ast.String{Text: "second string"}}},
			&ast.Form{Operator: "RTRUE"},
		}},
		{Name: "GO", Body: []ast.Node{
			&ast.Form{Operator: "PRINTI", Operands: []ast.Node{&ast.String{Text: "first string"}}},
			&ast.Form{Operator: "HELPER"},
			&ast.Form{Operator: "QUIT"},
		}},
	}

	sym, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}
	enc := ztext.NewEncoder(prog.Version)
	pool := strtab.New(enc)
	dict := objtable.BuildDictionary(enc, prog)
	gen := codegen.New(sym, pool, dict, codegen.Config{Version: prog.Version, StringDedup: true}, ctx.New())

	var routines []*codegen.Routine
	for _, r := range prog.Routines {
		cr, err := gen.Routine(r)
		if err != nil {
			t.Fatalf("gen.Routine(%s): %v", r.Name, err)
		}
		routines = append(routines, cr)
	}
	obj := objtable.Build(sym, prog, pool, enc, dict)

	in := &Input{Prog: prog, Sym: sym, Gen: gen, Routines: routines, Obj: obj, Dict: dict, Pool: pool, Enc: enc}
	img, lay, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	// Relocations are patched directly into img once every region has a
	// final address (see Assemble), not back into the Routine's own
	// buffer, so the markers must be read from img: an 0x8D PRINT_PADDR
	// opcode followed by the resolved 2-byte packed string address.
	// in.Routines is in source order (HELPER, GO), and routines are laid
	// out into img in that same order, so the first marker found belongs
	// to HELPER and the second to GO.
	end := len(img)
	if lay.StringBase > lay.RoutinesBase {
		end = lay.StringBase
	}
	var markers []uint16
	for i := lay.RoutinesBase; i+2 < end; i++ {
		if img[i] == 0x8D {
			markers = append(markers, uint16(img[i+1])<<8|uint16(img[i+2]))
			i += 2
		}
	}
	if len(markers) != 2 {
		t.Fatalf("expected 2 PRINT_PADDR markers in the routines region, found %d", len(markers))
	}
	helperAddr, goAddr := markers[0], markers[1]
	if goAddr == helperAddr {
		t.Fatalf("GO and HELPER resolved to the same packed string address %#04x; distinct strings must not collide", goAddr)
	}

	decode := func(packed uint16, want string) {
		byteAddr := packedToByteAddress(packed, prog.Version)
		if byteAddr < lay.StringBase || byteAddr >= len(img) {
			t.Fatalf("packed address %#04x -> byte %d falls outside the string table (base %d, len %d)", packed, byteAddr, lay.StringBase, len(img))
		}
		var words []uint16
		for i := byteAddr; i+1 < len(img); i += 2 {
			w := uint16(img[i])<<8 | uint16(img[i+1])
			words = append(words, w)
			if w&0x8000 != 0 {
				break
			}
		}
		if got := ztext.Decode(words); got != want {
			t.Fatalf("decoded %q, want %q", got, want)
		}
	}
	decode(goAddr, "first string")
	decode(helperAddr, "second string")
}
