package macro

import (
	"fmt"

	"zilc/internal/ast"
	"zilc/internal/ctx"
)

// nativeAllowlist never expands even when a user DEFMAC shadows the name,
// so the code generator can always recognise these forms (spec section
// 4.4, "Native-operation allowlist").
var nativeAllowlist = map[string]bool{
	"PRINT": true, "PRINTI": true, "CRLF": true, "PRINTN": true, "PRINTD": true,
	"PRINTC": true, "COND": true, "REPEAT": true, "PROG": true, "BIND": true,
	"DO": true, "MAP": true, "MAPF": true, "MAPR": true, "VERB?": true,
	"DLESS?": true, "IGRTR?": true, "EQUAL?": true, "FSET?": true, "IN?": true,
	"OBJECT": true, "ROOM": true,
}

// Table holds every DEFMAC body registered for a compilation, plus the
// evaluation context (flags, SETG globals) the meta-interpreter consults
// for IFFLAG/GASSIGNED?-style queries.
type Table struct {
	macros map[string]*ast.Macro
	Ctx    *ctx.Context
}

// New builds a Table from every <DEFMAC ...> collected by the parser.
func New(c *ctx.Context, defs []*ast.Macro) *Table {
	t := &Table{macros: make(map[string]*ast.Macro), Ctx: c}
	for _, m := range defs {
		if _, exists := t.macros[m.Name]; !exists {
			t.macros[m.Name] = m
		}
	}
	return t
}

// Lookup returns the macro registered under name; ok is false when no
// macro has that name or the name is on the native-operation allowlist.
func (t *Table) Lookup(name string) (*ast.Macro, bool) {
	if nativeAllowlist[name] {
		return nil, false
	}
	m, ok := t.macros[name]
	return m, ok
}

// Expand rewrites every routine body, global initialiser, table value, and
// property value in prog, repeatedly substituting macro calls and compile
// time forms until a fixed point. Cross-pass EVAL effects (spec section
// 4.4, "Cross-pass effects") append new Globals/Constants to prog as they
// are discovered; Expand re-scans until no pass produces either a rewrite
// or a new definition.
func (t *Table) Expand(prog *ast.Program) error {
	ex := &expander{table: t, prog: prog}
	for {
		ex.changed = false
		tops, err := ex.expandList(prog.TopForms, newEnv(nil))
		if err != nil {
			return fmt.Errorf("macro: top-level form: %w", err)
		}
		prog.TopForms = ex.absorbTopDefinitions(tops)
		for _, r := range prog.Routines {
			var err error
			r.Body, err = ex.expandList(r.Body, newEnv(nil))
			if err != nil {
				return fmt.Errorf("macro: routine %s: %w", r.Name, err)
			}
		}
		for _, g := range prog.Globals {
			if g.Initial != nil {
				v, err := ex.expandOne(g.Initial, newEnv(nil))
				if err != nil {
					return fmt.Errorf("macro: global %s: %w", g.Name, err)
				}
				g.Initial = v
			}
		}
		for _, tb := range prog.Tables {
			var err error
			tb.Values, err = ex.expandList(tb.Values, newEnv(nil))
			if err != nil {
				return fmt.Errorf("macro: table: %w", err)
			}
		}
		for _, ol := range prog.AllObjectLike() {
			for i := range ol.Properties {
				var err error
				ol.Properties[i].Values, err = ex.expandList(ol.Properties[i].Values, newEnv(nil))
				if err != nil {
					return fmt.Errorf("macro: object %s property %s: %w", ol.Name, ol.Properties[i].Name, err)
				}
			}
		}
		if !ex.changed {
			return nil
		}
	}
}
