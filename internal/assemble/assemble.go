// Package assemble lays out the finished story file memory map, resolves
// every relocation codegen and objtable left as a placeholder, and writes
// the Z-machine header, per spec section 4.10. It is the only phase that
// knows every region's final address at once.
package assemble

import (
	"strings"

	"zilc/internal/ast"
	"zilc/internal/codegen"
	"zilc/internal/objtable"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/zerr"
	"zilc/internal/ztext"
)

// Input collects every compiled artifact the assembler consumes.
type Input struct {
	Prog     *ast.Program
	Sym      *symtab.Table
	Gen      *codegen.Gen
	Routines []*codegen.Routine // in Gen.RoutineOrder order

	// Tables compiles every top-level <TABLE/ITABLE/LTABLE> and every
	// anonymous table embedded as a GLOBAL's initial value. GlobalTables
	// maps a GLOBAL name to its table's compiled bytes when that global's
	// initial value was itself a table (spec section 4.7's "table-base
	// references embedded in globals").
	Tables       []*codegen.Buffer
	GlobalTables map[string]*codegen.Buffer

	Obj  *objtable.Built
	Dict *objtable.Dictionary
	Pool *strtab.Pool
	Enc  *ztext.Encoder

	AbbrevStrings []string // selected abbreviation text, encoding-selection order
}

// Layout records every region's final base address, exported field-by-field
// for a read-only story-file analyzer to consume (spec section 1's
// out-of-scope "auxiliary analysis utilities" collaborator seam).
type Layout struct {
	GlobalsBase   int
	AbbrevBase    int
	ObjectBase    int
	TablesBase    int
	ExtensionBase int
	TermCharsBase int
	StaticMemBase int
	DictBase      int
	HighMemBase   int
	RoutinesBase  int
	StringBase    int
	FileLength    int
	Checksum      uint16
}

func fileDivisor(v int) int {
	switch {
	case v <= 3:
		return 2
	case v <= 5:
		return 4
	default:
		return 8
	}
}

func packedDivisor(v int) int {
	switch {
	case v <= 3:
		return 2
	case v <= 5:
		return 4
	case v == 8:
		return 8
	default:
		return 4 // V6-7, offset-corrected separately
	}
}

// Assemble produces the complete story file bytes and the final layout.
func Assemble(in *Input) ([]byte, *Layout, error) {
	v := in.Sym.Version
	lay := &Layout{}

	header := make([]byte, 64)
	img := append([]byte{}, header...)

	// --- globals ---
	lay.GlobalsBase = len(img)
	globalWords := resolveGlobals(in)
	for _, w := range globalWords {
		img = append(img, byte(w>>8), byte(w))
	}
	img = padWord(img)

	// --- abbreviations ---
	lay.AbbrevBase = len(img)
	abbrevTableBytes, abbrevStringBytes := buildAbbrevRegion(in, v, lay.AbbrevBase)
	img = append(img, abbrevTableBytes...)
	img = append(img, abbrevStringBytes...)
	img = padWord(img)

	// --- object table ---
	lay.ObjectBase = len(img)
	objStart := len(img)
	img = append(img, in.Obj.Bytes...)
	for _, off := range in.Obj.PropPtrFixups {
		pos := objStart + off
		ptr := int(img[pos])<<8 | int(img[pos+1])
		abs := objStart + ptr
		img[pos] = byte(abs >> 8)
		img[pos+1] = byte(abs)
	}
	img = padWord(img)

	// --- user tables ---
	lay.TablesBase = len(img)
	tableBase := make([]int, len(in.Tables))
	for i, t := range in.Tables {
		tableBase[i] = len(img)
		img = append(img, t.Bytes...)
	}
	namedTableBase := make(map[string]int, len(in.GlobalTables))
	for name, t := range in.GlobalTables {
		namedTableBase[name] = len(img)
		img = append(img, t.Bytes...)
	}
	img = padWord(img)

	// Now that every table has a final address, patch the global words
	// that referenced one by name: a GLOBAL whose initial value was itself
	// a table, and each DEFINE-GLOBALS soft-globals table (spec section
	// 4.10 step 1/2 collapsed into a single pass since assemble builds
	// both regions itself).
	for name, addr := range namedTableBase {
		num, ok := in.Sym.Globals[name]
		if !ok {
			continue
		}
		pos := lay.GlobalsBase + (int(num)-16)*2
		img[pos] = byte(addr >> 8)
		img[pos+1] = byte(addr)
	}

	// --- V5+ extension table and terminating-characters table ---
	lay.ExtensionBase = len(img)
	if v >= 5 {
		img = append(img, 0, 0, 0, 0) // word count 0, one reserved word
		lay.TermCharsBase = len(img)
		img = append(img, 0) // empty list: terminator only
	}
	img = padWord(img)

	lay.StaticMemBase = len(img)

	// --- dictionary ---
	lay.DictBase = len(img)
	img = append(img, in.Dict.Finalize()...)
	img = padCode(img, v)

	// --- high memory: routines ---
	lay.HighMemBase = len(img)
	if v == 6 || v == 7 {
		img = append(img, 0, 0, 0, 0)
	}

	routineBase := make(map[string]int, len(in.Routines))
	lay.RoutinesBase = len(img)
	for _, r := range in.Routines {
		// Every routine must start on a packed-address boundary, or its
		// packed address would truncate to the wrong byte (spec section
		// 4.8, "Packed addresses").
		img = padCode(img, v)
		routineBase[r.Name] = len(img)
		img = append(img, r.Bytes()...)
	}
	img = padCode(img, v)

	// --- deduplicated string table ---
	lay.StringBase = len(img)
	if in.Pool != nil && len(in.Pool.Entries()) > 0 {
		img = append(img, in.Pool.Finalize(packedDivisor(v))...)
	}

	img = padFile(img, fileDivisor(v))

	// --- resolve relocations now that every region has a final address ---
	if err := resolveRoutineRelocs(img, in, routineBase, lay, v); err != nil {
		return nil, nil, err
	}
	if err := resolveTableRelocs(img, in, tableBase, namedTableBase, routineBase, lay, v); err != nil {
		return nil, nil, err
	}
	if err := resolveObjectRelocs(img, in, lay); err != nil {
		return nil, nil, err
	}

	if err := writeHeader(img, in, routineBase, lay, v); err != nil {
		return nil, nil, err
	}

	lay.FileLength = len(img) / fileDivisor(v)
	if lay.FileLength > 0xFFFF {
		return nil, nil, zerr.New(zerr.Overflow, "story file length %d exceeds the %d-byte-unit limit for version %d", len(img), fileDivisor(v), v)
	}
	img[0x1A] = byte(lay.FileLength >> 8)
	img[0x1B] = byte(lay.FileLength)

	checksum := uint16(0)
	for _, b := range img[0x40:] {
		checksum += uint16(b)
	}
	lay.Checksum = checksum
	img[0x1C] = byte(checksum >> 8)
	img[0x1D] = byte(checksum)

	return img, lay, nil
}

func padWord(img []byte) []byte {
	if len(img)%2 != 0 {
		img = append(img, 0)
	}
	return img
}

// padCode pads to the version's code-alignment divisor (spec section
// 4.10's "pad to code alignment").
func padCode(img []byte, v int) []byte {
	d := packedDivisor(v)
	for len(img)%d != 0 {
		img = append(img, 0)
	}
	return img
}

func padFile(img []byte, divisor int) []byte {
	for len(img)%divisor != 0 {
		img = append(img, 0)
	}
	return img
}

// resolveGlobals computes each global's initial 16-bit value, returning the
// word vector (index 0 = variable 16, etc.). A GLOBAL whose initial value is
// itself a table gets a zero here; Assemble patches its slot once the table
// region's base address is known.
func resolveGlobals(in *Input) []uint16 {
	count := len(in.Sym.Globals)
	words := make([]uint16, count)

	byName := make(map[string]*ast.Global)
	for _, g := range in.Prog.Globals {
		byName[strings.ToUpper(g.Name)] = g
	}
	byNameDG := make(map[string]ast.Node)
	for _, dg := range in.Prog.DefineGlobals {
		for _, e := range dg.Entries {
			byNameDG[strings.ToUpper(e.Name)] = e.Value
		}
	}

	for name, num := range in.Sym.Globals {
		slot := int(num) - 16
		if slot < 0 || slot >= count {
			continue
		}
		if g, ok := byName[name]; ok && g.Initial != nil {
			if _, isTable := g.Initial.(*ast.Table); !isTable {
				words[slot] = evalGlobalValue(in.Sym, g.Initial)
			}
			continue
		}
		if val, ok := byNameDG[name]; ok && val != nil {
			words[slot] = evalGlobalValue(in.Sym, val)
		}
	}
	return words
}

func evalGlobalValue(sym *symtab.Table, n ast.Node) uint16 {
	switch v := n.(type) {
	case *ast.Number:
		return uint16(v.Value)
	case *ast.Atom:
		name := strings.ToUpper(v.Name)
		if num, ok := sym.Objects[name]; ok {
			return uint16(num)
		}
		if cv, ok := sym.Constants[name]; ok {
			return evalGlobalValue(sym, cv)
		}
	}
	return 0
}

// buildAbbrevRegion encodes the 96-slot abbreviation address table plus the
// backing Z-character strings, using a plain (non-abbreviating) encoder so
// an abbreviation never references itself. abbrevBase is the region's own
// address in the final image (table immediately followed by strings), known
// up front since Assemble calls this right after fixing lay.AbbrevBase.
func buildAbbrevRegion(in *Input, v int, abbrevBase int) (table []byte, strs []byte) {
	table = make([]byte, 192) // 96 * 2 bytes, always reserved (spec: "96 x 2 bytes")
	if v < 2 {
		return table, nil
	}
	plain := ztext.NewEncoder(v)
	stringsBase := abbrevBase + len(table)
	off := 0
	for i, s := range in.AbbrevStrings {
		if i >= 96 {
			break
		}
		words := plain.Encode(s, 0)
		addr := stringsBase + off
		word := uint16(addr / 2) // abbreviation table entries are word addresses, always addr/2
		table[i*2] = byte(word >> 8)
		table[i*2+1] = byte(word)
		for _, w := range words {
			strs = append(strs, byte(w>>8), byte(w))
		}
		off += len(words) * 2
	}
	return table, strs
}
