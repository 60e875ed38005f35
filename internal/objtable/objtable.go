// Package objtable builds the object table (property defaults, object
// entries, property tables) and the dictionary, per spec section 4.7.
// Both are self-contained byte blobs internal/assemble places in memory
// and relocates against; codegen only ever talks to the Dictionary side
// through its narrow Index method.
package objtable

import (
	"sort"
	"strings"

	"zilc/internal/ast"
	"zilc/internal/reloc"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/ztext"
)

// Built is the finished object table: Bytes is the defaults vector
// followed by every object entry followed by every property table, laid
// out contiguously exactly as it will appear in the story file.
// PropPtrFixups lists the byte offsets of every property-pointer field,
// each currently holding its offset from the start of Bytes; per spec
// section 4.7 ("the builder later patches to an absolute address inside
// the table"), internal/assemble adds the table's own base address to
// each of these once memory layout is final.
type Built struct {
	Bytes         []byte
	PropPtrFixups []int
	DefaultsLen   int
	EntrySize     int

	// PropertyTables holds each object's encoded property-table bytes
	// (short description, property records, terminator) in object-number
	// order, the same slices already appended into Bytes; internal/optimize
	// hashes these for its property-value dedup bookkeeping pass (spec
	// section 4.9) without needing to re-parse the flattened table.
	PropertyTables [][]byte

	// Relocs marks every SYNONYM/ADJECTIVE property word that references a
	// dictionary entry by offset (spec section 4.8's PropertySynonym/
	// PropertyAdjective placeholders); ByteOffset is relative to Bytes,
	// resolved by internal/assemble once the dictionary's base address is
	// known.
	Relocs []reloc.Relocation
}

// Build assembles the full object table for sym.ObjectList against prog's
// object/room bodies, encoding short descriptions and property values
// through pool/enc, resolving SYNONYM/ADJECTIVE property words against dict.
func Build(sym *symtab.Table, prog *ast.Program, pool *strtab.Pool, enc *ztext.Encoder, dict *Dictionary) *Built {
	b := &Built{}
	v5 := sym.Version >= 4

	// Property defaults: one word per property number 1..MaxProperties,
	// taken from PROPDEF's Default when declared, zero otherwise.
	defaults := make([]uint16, sym.MaxProperties)
	for _, pd := range prog.Propdefs {
		if pd.Default == nil {
			continue
		}
		if n, ok := pd.Default.(*ast.Number); ok {
			if num, ok2 := sym.Properties[strings.ToUpper(pd.Name)]; ok2 && num >= 1 && num <= len(defaults) {
				defaults[num-1] = uint16(n.Value)
			}
		}
	}
	for _, d := range defaults {
		b.Bytes = append(b.Bytes, byte(d>>8), byte(d))
	}
	b.DefaultsLen = len(b.Bytes)

	entrySize := 9
	if v5 {
		entrySize = 14
	}
	b.EntrySize = entrySize

	byName := make(map[string]ast.ObjectLike)
	for _, ol := range prog.AllObjectLike() {
		byName[strings.ToUpper(ol.Name)] = ol
	}

	parent, sibling, child := buildTree(sym, byName)

	entryStart := len(b.Bytes)
	for range sym.ObjectList[1:] {
		b.Bytes = append(b.Bytes, make([]byte, entrySize)...)
	}

	// Property tables follow every entry, in object-number order; each
	// entry's 2-byte pointer field is filled with that table's offset
	// from the start of Bytes (not yet the absolute address).
	for i, name := range sym.ObjectList {
		if i == 0 {
			continue
		}
		ol := byName[name]
		base := entryStart + (i-1)*entrySize
		writeAttrs(b.Bytes[base:base+entrySize], ol.Properties, sym, v5)
		writePSC(b.Bytes[base:base+entrySize], parent[i], sibling[i], child[i], v5)

		ptrOff := len(b.Bytes)
		propBytes, propRelocs := buildPropertyTable(ol, sym, pool, enc, dict)
		for _, rl := range propRelocs {
			rl.ByteOffset += ptrOff
			b.Relocs = append(b.Relocs, rl)
		}
		b.Bytes = append(b.Bytes, propBytes...)
		b.PropertyTables = append(b.PropertyTables, propBytes)

		fixupPos := base + attrBytes(v5) + 3*pscWidth(v5)
		b.Bytes[fixupPos] = byte(ptrOff >> 8)
		b.Bytes[fixupPos+1] = byte(ptrOff)
		b.PropPtrFixups = append(b.PropPtrFixups, fixupPos)
	}
	return b
}

func attrBytes(v5 bool) int {
	if v5 {
		return 6
	}
	return 4
}

func pscWidth(v5 bool) int {
	if v5 {
		return 2
	}
	return 1
}

// buildTree derives parent/sibling/child links from each object's IN/LOC
// property value, the ZIL convention for static containment (spec section
// 4.7 does not name the source property explicitly; this mirrors how the
// original distinguishes room/object placement via IN).
func buildTree(sym *symtab.Table, byName map[string]ast.ObjectLike) (parent, sibling, child map[int]int) {
	parent = make(map[int]int)
	sibling = make(map[int]int)
	child = make(map[int]int)

	lastChild := make(map[int]int) // parent obj num -> most recently attached child
	for _, name := range sym.ObjectList[1:] {
		ol := byName[name]
		num := sym.Objects[name]
		var locName string
		for _, p := range ol.Properties {
			if strings.EqualFold(p.Name, "IN") || strings.EqualFold(p.Name, "LOC") {
				if len(p.Values) > 0 {
					if a, ok := p.Values[0].(*ast.Atom); ok {
						locName = strings.ToUpper(a.Name)
					}
				}
			}
		}
		if locName == "" {
			continue
		}
		pnum, ok := sym.Objects[locName]
		if !ok {
			continue
		}
		parent[num] = pnum
		if prev, ok := lastChild[pnum]; ok {
			sibling[prev] = num
		} else {
			child[pnum] = num
		}
		lastChild[pnum] = num
	}
	return
}

func writeAttrs(entry []byte, props []ast.Property, sym *symtab.Table, v5 bool) {
	n := attrBytes(v5)
	for _, p := range props {
		if !strings.EqualFold(p.Name, "FLAGS") {
			continue
		}
		for _, v := range p.Values {
			a, ok := v.(*ast.Atom)
			if !ok {
				continue
			}
			bit, ok := sym.Attributes[strings.ToUpper(a.Name)]
			if !ok {
				continue
			}
			byteIdx := bit / 8
			if byteIdx >= n {
				continue
			}
			entry[byteIdx] |= 0x80 >> uint(bit%8)
		}
	}
}

func writePSC(entry []byte, parent, sibling, child int, v5 bool) {
	off := attrBytes(v5)
	if v5 {
		entry[off] = byte(parent >> 8)
		entry[off+1] = byte(parent)
		entry[off+2] = byte(sibling >> 8)
		entry[off+3] = byte(sibling)
		entry[off+4] = byte(child >> 8)
		entry[off+5] = byte(child)
		return
	}
	entry[off] = byte(parent)
	entry[off+1] = byte(sibling)
	entry[off+2] = byte(child)
}

// buildPropertyTable encodes one object's short description followed by
// its properties in descending property-number order, terminated by a
// zero length byte (spec section 4.7). Returned relocations are offset
// relative to the start of the returned slice; Build adjusts them once the
// slice's position within the full object table is known.
func buildPropertyTable(ol ast.ObjectLike, sym *symtab.Table, pool *strtab.Pool, enc *ztext.Encoder, dict *Dictionary) ([]byte, []reloc.Relocation) {
	var out []byte

	desc := shortDescription(ol)
	words := enc.Encode(desc, 0)
	out = append(out, byte(len(words)))
	for _, w := range words {
		out = append(out, byte(w>>8), byte(w))
	}

	type propVal struct {
		num    int
		data   []byte
		relocs []reloc.Relocation // offsets relative to data
	}
	var vals []propVal
	for _, p := range ol.Properties {
		u := strings.ToUpper(p.Name)
		if u == "FLAGS" || u == "DESC" {
			continue
		}
		num, ok := sym.Properties[u]
		if !ok {
			continue
		}
		data, relocs := encodePropertyValue(u, p, sym, pool, enc, dict)
		if data == nil {
			continue
		}
		vals = append(vals, propVal{num: num, data: data, relocs: relocs})
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].num > vals[j].num })

	var out2Relocs []reloc.Relocation
	v5 := sym.Version >= 4
	for _, pv := range vals {
		n := len(pv.data)
		if n == 0 {
			n = 1
		}
		if !v5 {
			out = append(out, byte(32*(n-1)+pv.num))
		} else if n <= 2 {
			b0 := byte(pv.num)
			if n == 2 {
				b0 |= 0x40
			}
			out = append(out, b0)
		} else {
			out = append(out, 0x80|byte(pv.num), byte(n)&0x3F|0x80)
		}
		dataStart := len(out)
		for _, rl := range pv.relocs {
			rl.ByteOffset += dataStart
			out2Relocs = append(out2Relocs, rl)
		}
		out = append(out, pv.data...)
	}
	out = append(out, 0)
	return out, out2Relocs
}

func shortDescription(ol ast.ObjectLike) string {
	for _, p := range ol.Properties {
		if strings.EqualFold(p.Name, "DESC") && len(p.Values) > 0 {
			if s, ok := p.Values[0].(*ast.String); ok {
				return s.Text
			}
		}
	}
	return ""
}

// encodePropertyValue packs a generic property's values into its raw byte
// payload: numbers and object references become one word each, a lone
// string is Z-character encoded. SYNONYM and ADJECTIVE values are
// dictionary-word references: each atom becomes a relocation (spec section
// 4.8's PropertySynonym/PropertyAdjective placeholders), resolved by
// internal/assemble once the dictionary's base address is known.
func encodePropertyValue(propName string, p ast.Property, sym *symtab.Table, pool *strtab.Pool, enc *ztext.Encoder, dict *Dictionary) ([]byte, []reloc.Relocation) {
	var out []byte
	var relocs []reloc.Relocation
	isSynonym := propName == "SYNONYM"
	isAdjective := propName == "ADJECTIVE"
	for _, v := range p.Values {
		switch n := v.(type) {
		case *ast.Number:
			out = append(out, byte(n.Value>>8), byte(n.Value))
		case *ast.Atom:
			name := strings.ToUpper(n.Name)
			if isSynonym || isAdjective {
				kind := reloc.PropertySynonym
				if isAdjective {
					kind = reloc.PropertyAdjective
				}
				if dict != nil {
					if idx, ok := dict.Index(n.Name); ok {
						relocs = append(relocs, reloc.Relocation{Kind: kind, ByteOffset: len(out), Index: idx, Width: 2})
					}
				}
				out = append(out, 0, 0)
				continue
			}
			if num, ok := sym.Objects[name]; ok {
				out = append(out, byte(num>>8), byte(num))
				continue
			}
			out = append(out, 0, 0)
		case *ast.String:
			words := pool.InlineEncode(n.Text)
			for _, w := range words {
				out = append(out, byte(w>>8), byte(w))
			}
		case *ast.Form:
			// <VOC "word" part-of-speech> inside a PROPDEF-shaped property
			// value emits a vocabulary-word reference (spec section 4.8's
			// PropertyVoc placeholder).
			if strings.EqualFold(n.Operator, "VOC") && len(n.Operands) > 0 {
				if word, ok := vocWord(n.Operands[0]); ok && dict != nil {
					if idx, ok := dict.Index(word); ok {
						relocs = append(relocs, reloc.Relocation{Kind: reloc.PropertyVoc, ByteOffset: len(out), Index: idx, Width: 2})
					}
				}
			}
			out = append(out, 0, 0)
		default:
			out = append(out, 0, 0)
		}
	}
	return out, relocs
}

// vocWord extracts the vocabulary word named by a VOC form's first operand.
func vocWord(n ast.Node) (string, bool) {
	switch v := n.(type) {
	case *ast.String:
		return v.Text, true
	case *ast.Atom:
		return v.Name, true
	}
	return "", false
}
