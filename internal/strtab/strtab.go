// Package strtab is the deduplicated string table consumed by
// internal/codegen (TELL/PRINTI literals), internal/objtable (object short
// descriptions) and internal/assemble (the optional high-memory string
// table), per spec section 4.9's string-deduplication pass: identical
// literal text anywhere in the program shares one encoded-bytes slot and
// therefore one final address.
package strtab

import "zilc/internal/ztext"

// Entry is one deduplicated string: its Z-character words and the number
// of call sites that reference it (recorded for --verbose reporting by
// internal/optimize).
type Entry struct {
	Text  string
	Words []uint16
	Uses  int

	// ID is this entry's stable first-seen-order position, assigned once
	// at Intern time. Relocations capture ID rather than Offset: Offset
	// isn't known until Finalize runs at the end of assembly, long after
	// codegen has recorded every placeholder, so codegen resolves a
	// string reference to its ID and internal/assemble looks up the
	// entry's final Offset through Pool.Offset(ID) once Finalize has
	// run.
	ID int

	// Offset is this entry's byte offset from the start of the table,
	// assigned by Finalize in insertion order. internal/assemble adds the
	// table's base address to get an absolute address, and the packed
	// form for PRINT_PADDR/string-operand relocations.
	Offset int
}

// Pool deduplicates string literals by exact text match and encodes each
// exactly once.
type Pool struct {
	enc     *ztext.Encoder
	byText  map[string]*Entry
	order   []*Entry
	dictLen int // bytes emitted so far, valid only after Finalize
}

// New returns a Pool that encodes with enc (already configured with the
// target version and, once selected, the abbreviation table).
func New(enc *ztext.Encoder) *Pool {
	return &Pool{enc: enc, byText: make(map[string]*Entry)}
}

// Intern records a use of text, encoding it the first time it is seen, and
// returns its Entry. Callers look up Entry.Offset only after Finalize.
func (p *Pool) Intern(text string) *Entry {
	if e, ok := p.byText[text]; ok {
		e.Uses++
		return e
	}
	e := &Entry{Text: text, Words: p.enc.Encode(text, 0), ID: len(p.order)}
	e.Uses = 1
	p.byText[text] = e
	p.order = append(p.order, e)
	return e
}

// Texts returns every distinct interned string, in first-seen order.
// Abbreviation selection runs over the program's full string corpus before
// the first Intern call (internal/optimize.SelectAbbreviations), so every
// entry's encoding already carries abbreviation references.
func (p *Pool) Texts() []string {
	out := make([]string, len(p.order))
	for i, e := range p.order {
		out[i] = e.Text
	}
	return out
}

// Finalize assigns byte offsets to every entry in first-seen order and
// returns the flattened byte stream (big-endian words) for the table.
// Each entry starts on an align-byte boundary so its packed address
// (entry byte address / align) is exact; align is the target version's
// packed-address divisor (2/4/8).
func (p *Pool) Finalize(align int) []byte {
	if align < 2 {
		align = 2
	}
	var out []byte
	off := 0
	for _, e := range p.order {
		for off%align != 0 {
			out = append(out, 0)
			off++
		}
		e.Offset = off
		for _, w := range e.Words {
			out = append(out, byte(w>>8), byte(w))
		}
		off += len(e.Words) * 2
	}
	p.dictLen = off
	return out
}

// Len returns the table's total byte length; only meaningful after Finalize.
func (p *Pool) Len() int { return p.dictLen }

// Entries returns every interned entry in first-seen order.
func (p *Pool) Entries() []*Entry { return p.order }

// Offset resolves an Entry.ID (as captured by a relocation at codegen
// time) to its final byte offset from the table base. Only valid after
// Finalize has run.
func (p *Pool) Offset(id int) (int, bool) {
	if id < 0 || id >= len(p.order) {
		return 0, false
	}
	return p.order[id].Offset, true
}

// InlineEncode encodes text without interning it into the dedup pool,
// used for PRINTI literals compiled as inline 0OP print instructions
// rather than PRINT_PADDR references (spec section 4.9: string dedup is
// opt-in via --string-dedup).
func (p *Pool) InlineEncode(text string) []uint16 { return p.enc.Encode(text, 0) }

// Lookup returns the entry for text, if interned.
func (p *Pool) Lookup(text string) (*Entry, bool) {
	e, ok := p.byText[text]
	return e, ok
}
