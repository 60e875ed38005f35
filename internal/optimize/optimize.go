// Package optimize runs the optimisation passes of spec section 4.9.
// Abbreviation selection must see the complete string corpus before any
// string is irrevocably encoded, so SelectAbbreviations runs ahead of code
// generation and the object-table builder (both bake encoded text into
// their output bytes); the dedup bookkeeping passes in Run execute in
// their spec position, between code generation and assembly.
package optimize

import (
	"zilc/internal/abbrev"
	"zilc/internal/ast"
	"zilc/internal/objtable"
	"zilc/internal/strtab"
	"zilc/internal/ztext"
)

// Config carries the optimisation switches passed to Run; Run's passes do
// not consult its fields.
type Config struct {
	StringDedup bool
}

// Report summarises what each pass did, surfaced by cmd/zilc's --verbose
// output.
type Report struct {
	UniqueStrings             int
	TotalStringUses           int
	DuplicatePropertyPayloads int
	AbbreviationsSelected     int

	// Selected holds the chosen abbreviation text itself, in selection
	// order; internal/assemble needs the literal strings (not just the
	// count) to lay out the abbreviation table's backing Z-character text.
	Selected []string
}

// StringCorpus walks the macro-expanded program and collects every string
// literal, one occurrence per appearance: routine bodies (PRINTI/TELL
// text), object and room properties (short descriptions included), table
// values, global initialisers, and TELL-TOKENS expansions. Abbreviation
// scoring counts occurrences across this list, so duplicates are kept.
func StringCorpus(prog *ast.Program) []string {
	var out []string
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.String:
			out = append(out, v.Text)
		case *ast.Form:
			for _, o := range v.Operands {
				walk(o)
			}
		case *ast.Cond:
			for _, cl := range v.Clauses {
				walk(cl.Test)
				for _, b := range cl.Body {
					walk(b)
				}
			}
		case *ast.Repeat:
			if v.ExitCond != nil {
				walk(v.ExitCond)
			}
			for _, b := range v.Body {
				walk(b)
			}
		}
	}
	for _, r := range prog.Routines {
		for _, n := range r.Body {
			walk(n)
		}
	}
	for _, ol := range prog.AllObjectLike() {
		for _, p := range ol.Properties {
			for _, n := range p.Values {
				walk(n)
			}
		}
	}
	for _, t := range prog.Tables {
		for _, n := range t.Values {
			walk(n)
		}
	}
	for _, g := range prog.Globals {
		if g.Initial != nil {
			walk(g.Initial)
		}
	}
	for _, tt := range prog.TellTokens {
		for _, n := range tt.Expansion {
			walk(n)
		}
	}
	return out
}

// SelectAbbreviations runs the corpus-driven selection of spec section 4.6
// over the full string corpus and attaches the resulting table to enc, so
// every subsequent encode (inline PRINTI text, object descriptions,
// property strings, pooled entries) substitutes abbreviation references.
// It must run before the first string is encoded; the dictionary uses its
// own plain encoder since dictionary words never contain abbreviation
// references.
func SelectAbbreviations(corpus []string, enc *ztext.Encoder) []string {
	selected := abbrev.Select(corpus)
	enc.Abbrevs = abbrev.NewTable(selected)
	return selected
}

// Run executes the post-codegen bookkeeping passes against the compiled
// program state: pool holds every interned string (already deduplicated by
// construction, since strtab.Pool.Intern merges on first sight) and obj is
// the assembled object table (consulted for property-payload duplication
// bookkeeping). selected is the abbreviation list SelectAbbreviations
// chose up front, carried into the report for the assembler and --verbose.
func Run(pool *strtab.Pool, obj *objtable.Built, selected []string, cfg Config) Report {
	var r Report

	entries := pool.Entries()
	r.UniqueStrings = len(entries)
	for _, e := range entries {
		r.TotalStringUses += e.Uses
	}

	r.DuplicatePropertyPayloads = countDuplicatePropertyPayloads(obj)

	r.AbbreviationsSelected = len(selected)
	r.Selected = selected
	return r
}

// countDuplicatePropertyPayloads hashes each object's full property-table
// byte image and counts how many objects repeat one already seen earlier
// (e.g. two objects sharing identical FLAGS/SYNONYM/ADJECTIVE sets and no
// description); per spec section 4.9 this is reporting only; the object
// table's per-object layout is unaffected since each property table is
// still addressed by its own object's property pointer.
func countDuplicatePropertyPayloads(obj *objtable.Built) int {
	if obj == nil {
		return 0
	}
	seen := make(map[string]bool)
	dup := 0
	for _, pt := range obj.PropertyTables {
		key := string(pt)
		if seen[key] {
			dup++
			continue
		}
		seen[key] = true
	}
	return dup
}
