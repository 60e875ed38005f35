package objtable

import (
	"fmt"
	"sort"
	"strings"

	"zilc/internal/ast"
	"zilc/internal/ztext"
)

// defaultSeparators are always present in the dictionary's separator list,
// per spec section 4.7; a program may extend this set via self-inserting
// break characters, which zilc does not currently parse as a distinct
// directive and so is limited to this fixed set (documented in DESIGN.md).
const defaultSeparators = ".,;:?!()[]{}"

// Role flags unioned into an entry's type byte, per spec section 3 ("type
// byte unions all contributing roles") and ground-truth
// original_source/zilc/zmachine/dictionary.py's _compute_type_byte.
const (
	roleNoun        = 0x80
	roleVerb        = 0x40
	roleAdjective   = 0x20
	roleDirection   = 0x10
	rolePreposition = 0x08
	roleBuzz        = 0x04
)

// entry is one merged dictionary word: entries with identical Z-character
// encodings share a byte-for-byte identical entry, per spec section 4.7.
type entry struct {
	words  []uint16
	flags  byte // union of role* bits, per _compute_type_byte
	verbNo int
	id     int // stable first-add position; never reassigned by Finalize's sort
	offset int // assigned by Finalize, relative to the table base
}

// Dictionary collects every vocabulary word referenced by the program
// (verbs, synonyms, adjectives, buzzwords, prepositions) and assigns each
// a stable offset once Finalize sorts them into encoding order. It
// implements internal/codegen.Dictionary.
//
// codegen and objtable resolve a word to its entry's id (stable across
// Finalize's sort) while compiling, long before the table's final,
// encoding-sorted layout is known; internal/assemble resolves id back to
// the eventual Offset via EntryOffset once Finalize has run, the same
// two-phase scheme internal/strtab uses for its ID/Offset split.
type Dictionary struct {
	enc     *ztext.Encoder
	byEnc   map[string]*entry
	byWord  map[string]*entry
	byID    []*entry // insertion order, stable across Finalize's sort
	order   []*entry
	built   bool

	// Warnings collects non-fatal dictionary-merge diagnostics: two source
	// words whose truncated encodings collide into one entry (spec section
	// 7's warning class). The driver surfaces them; compilation proceeds.
	Warnings []string
}

// New returns an empty Dictionary encoding with enc.
func New(enc *ztext.Encoder) *Dictionary {
	return &Dictionary{enc: enc, byEnc: make(map[string]*entry), byWord: make(map[string]*entry)}
}

// add records word with the given role flags, merging it into an existing
// entry whose Z-character encoding is identical (spec section 4.7: "entries
// with identical encodings merge into one, unioning their role flags"; spec
// section 3: "type byte unions all contributing roles"). verbNo is only
// consulted when role includes roleVerb.
func (d *Dictionary) add(word string, role byte, verbNo int) *entry {
	word = strings.ToLower(word)
	if e, ok := d.byWord[word]; ok {
		e.flags |= role
		if role&roleVerb != 0 {
			e.verbNo = verbNo
		}
		return e
	}
	words := d.enc.Encode(word, d.enc.DictWordCount())
	key := encKey(words)
	if e, ok := d.byEnc[key]; ok {
		d.Warnings = append(d.Warnings, fmt.Sprintf("word %q encodes identically to an earlier word; entries merged", word))
		d.byWord[word] = e
		e.flags |= role
		if role&roleVerb != 0 {
			e.verbNo = verbNo
		}
		return e
	}
	e := &entry{words: words, flags: role, id: len(d.byID)}
	if role&roleVerb != 0 {
		e.verbNo = verbNo
	}
	d.byEnc[key] = e
	d.byWord[word] = e
	d.order = append(d.order, e)
	d.byID = append(d.byID, e)
	return e
}

func encKey(words []uint16) string {
	b := make([]byte, len(words)*2)
	for i, w := range words {
		b[i*2] = byte(w >> 8)
		b[i*2+1] = byte(w)
	}
	return string(b)
}

// syntaxPlaceholders are pattern tokens that denote a parser slot (OBJECT,
// quantifier/finder keywords) rather than a literal preposition, and so are
// never added to the dictionary; grounded on
// original_source/zilc/compiler.py's SYNTAX-word extraction skip list.
var syntaxPlaceholders = map[string]bool{
	"OBJECT": true, "FIND": true, "HAVE": true, "HELD": true,
	"ON-GROUND": true, "IN-ROOM": true, "TAKE": true, "MANY": true, "SEARCH": true,
}

// BuildDictionary populates the dictionary from every vocabulary-bearing part of
// prog: verb syntax patterns and their synonyms, object SYNONYM/ADJECTIVE
// property values, declared directions, buzzwords, and preposition/bit
// synonyms.
func BuildDictionary(enc *ztext.Encoder, prog *ast.Program) *Dictionary {
	d := New(enc)
	verbNo := 1
	for _, s := range prog.Syntaxes {
		if len(s.Pattern) == 0 {
			continue
		}
		verb := s.Pattern[0]
		d.add(verb, roleVerb, verbNo)
		for _, syn := range s.VerbSynonyms {
			d.add(syn, roleVerb, verbNo)
		}
		verbNo++
		for _, tok := range s.Pattern[1:] {
			if syntaxPlaceholders[strings.ToUpper(tok)] || strings.HasSuffix(strings.ToUpper(tok), "BIT") {
				continue
			}
			d.add(tok, rolePreposition, 0)
		}
	}
	for _, ol := range prog.AllObjectLike() {
		for _, p := range ol.Properties {
			u := strings.ToUpper(p.Name)
			var role byte
			switch u {
			case "SYNONYM":
				role = roleNoun
			case "ADJECTIVE":
				role = roleAdjective
			default:
				// <VOC "word" part-of-speech> values in any other property
				// also contribute vocabulary (spec section 4.8's PropertyVoc
				// placeholders reference dictionary entries).
				for _, v := range p.Values {
					if f, ok := v.(*ast.Form); ok && strings.EqualFold(f.Operator, "VOC") && len(f.Operands) > 0 {
						if word, ok := vocWord(f.Operands[0]); ok {
							d.add(word, vocRole(f), 0)
						}
					}
				}
				continue
			}
			for _, v := range p.Values {
				if a, ok := v.(*ast.Atom); ok {
					d.add(a.Name, role, 0)
				}
			}
		}
	}
	for _, dir := range prog.Directions {
		d.add(dir, roleDirection, 0)
	}
	for _, bw := range prog.Buzzwords {
		d.add(bw, roleBuzz, 0)
	}
	for _, syns := range prog.Synonyms {
		// <SYNONYM w1 w2 ...> declares a verb-synonym cluster (spec
		// section 6); all words in a cluster share one role, not a verb
		// number of their own (no ACTION routine is named here).
		for _, s := range syns {
			d.add(s, roleVerb, 0)
		}
	}
	for _, bs := range prog.BitSynonyms {
		// BIT-SYNONYM aliases an attribute (bit) name, not a vocabulary
		// word; it is recorded in the dictionary for lookup purposes only,
		// with no part-of-speech role to contribute.
		d.add(bs.Orig, 0, 0)
		d.add(bs.Alias, 0, 0)
	}
	for _, ps := range prog.PrepSynonyms {
		d.add(ps.Canonical, rolePreposition, 0)
		for _, s := range ps.Synonyms {
			d.add(s, rolePreposition, 0)
		}
	}
	for _, w := range prog.RemoveSynonyms {
		delete(d.byWord, strings.ToLower(w))
	}
	return d
}

// vocRole maps a VOC form's part-of-speech operand to a role flag; absent
// or unrecognised parts default to noun.
func vocRole(f *ast.Form) byte {
	if len(f.Operands) < 2 {
		return roleNoun
	}
	a, ok := f.Operands[1].(*ast.Atom)
	if !ok {
		return roleNoun
	}
	switch strings.ToUpper(a.Name) {
	case "ADJ", "ADJECTIVE":
		return roleAdjective
	case "DIR", "DIRECTION":
		return roleDirection
	case "VERB":
		return roleVerb
	case "PREP", "PREPOSITION":
		return rolePreposition
	case "BUZZ":
		return roleBuzz
	}
	return roleNoun
}

// Index returns word's stable id, satisfying internal/codegen.Dictionary.
// The id never changes; resolve it to a final table offset with
// EntryOffset only after Finalize has run.
func (d *Dictionary) Index(word string) (int, bool) {
	e, ok := d.byWord[strings.ToLower(word)]
	if !ok {
		return 0, false
	}
	return e.id, true
}

// EntryOffset resolves a stable id (as returned by Index) to its entry's
// final byte offset from the table base. Only valid after Finalize.
func (d *Dictionary) EntryOffset(id int) (int, bool) {
	if id < 0 || id >= len(d.byID) {
		return 0, false
	}
	return d.byID[id].offset, true
}

// entryWidth is the per-word entry width: the encoded text plus two data
// bytes (flags, verb number), matching classic Infocom layout ("entry_length"
// in the header).
func (d *Dictionary) entryWidth() int {
	return d.enc.DictWordCount()*2 + 2
}

// Separators returns the dictionary's separator character list.
func (d *Dictionary) Separators() string { return defaultSeparators }

// Finalize sorts entries into encoding order (spec section 4.7: "entries
// are emitted in encoding-sorted order"), assigns each its offset relative
// to the table's own base, and returns the complete table bytes
// (separator header, entry_length, word_count, then each entry).
func (d *Dictionary) Finalize() []byte {
	sort.Slice(d.order, func(i, j int) bool {
		return encKey(d.order[i].words) < encKey(d.order[j].words)
	})

	ew := d.entryWidth()
	headerLen := 1 + len(defaultSeparators) + 1 + 2
	for i, e := range d.order {
		e.offset = headerLen + i*ew
	}

	out := make([]byte, 0, headerLen+ew*len(d.order))
	out = append(out, byte(len(defaultSeparators)))
	out = append(out, defaultSeparators...)
	out = append(out, byte(ew))
	out = append(out, byte(len(d.order)>>8), byte(len(d.order)))
	for _, e := range d.order {
		for _, w := range e.words {
			out = append(out, byte(w>>8), byte(w))
		}
		// Data bytes: the role-union type byte (spec section 3, "type byte
		// unions all contributing roles"), then a verb number for parser
		// dispatch, zero for non-verb entries. Verb synonyms share both
		// bytes with their canonical verb (spec section 4.7).
		out = append(out, e.flags, byte(e.verbNo))
	}
	d.built = true
	return out
}
