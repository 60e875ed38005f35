package codegen

import (
	"strings"

	"zilc/internal/ast"
	"zilc/internal/reloc"
)

// resolveOperand lowers an AST value expression to an Operand, emitting
// whatever side-effecting instructions are needed (e.g. a nested
// value-producing Form stores its result to the stack and is referenced
// as Variable 0) into rc.buf as it goes.
func (rc *routineCtx) resolveOperand(n ast.Node) Operand {
	switch v := n.(type) {
	case *ast.Number:
		return constOperand(int(v.Value))
	case *ast.LocalVar:
		if slot, ok := rc.locals[strings.ToUpper(v.Name)]; ok {
			return varOperand(slot)
		}
		return constOperand(0)
	case *ast.GlobalVar:
		if num, ok := rc.gen.Sym.Globals[strings.ToUpper(v.Name)]; ok {
			return varOperand(num)
		}
		return constOperand(0)
	case *ast.CharLocalVar, *ast.CharGlobalVar:
		return rc.resolveCharVar(n)
	case *ast.String:
		e := rc.gen.Pool.Intern(v.Text)
		return Operand{Type: LargeConstant, Value: 0, HasReloc: true, RelocKind: reloc.StringOperand, RelocIndex: e.ID}
	case *ast.Atom:
		return rc.resolveAtom(v)
	case *ast.Form:
		return rc.resolveForm(v)
	default:
		return constOperand(0)
	}
}

// resolveCharVar handles %.NAME/%,NAME "character-printing" variable
// variants: they name the same local/global slot as their plain
// counterpart and are otherwise ordinary Variable operands; the
// distinction only matters to TELL's primitive-print dispatch (spec
// section 4.2).
func (rc *routineCtx) resolveCharVar(n ast.Node) Operand {
	switch v := n.(type) {
	case *ast.CharLocalVar:
		if slot, ok := rc.locals[strings.ToUpper(v.Name)]; ok {
			return varOperand(slot)
		}
	case *ast.CharGlobalVar:
		if num, ok := rc.gen.Sym.Globals[strings.ToUpper(v.Name)]; ok {
			return varOperand(num)
		}
	}
	return constOperand(0)
}

// resolveAtom resolves a bare atom operand: an object name, an attribute
// name, a CONSTANT reference, a routine name (used as a packed-address
// value, not a call), or a "W?WORD"/"P?NAME" vocabulary/property-number
// pseudo-reference (spec section 4.8, vocabulary placeholders).
func (rc *routineCtx) resolveAtom(a *ast.Atom) Operand {
	name := strings.ToUpper(a.Name)
	if strings.HasPrefix(name, "W?") {
		word := strings.ToLower(name[2:])
		if rc.gen.Dict != nil {
			if idx, ok := rc.gen.Dict.Index(word); ok {
				return Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.DictionaryWord, RelocIndex: idx}
			}
		}
		return constOperand(0)
	}
	if strings.HasPrefix(name, "P?") {
		if num, ok := rc.gen.Sym.Properties[name[2:]]; ok {
			return constOperand(num)
		}
		return constOperand(0)
	}
	if num, ok := rc.gen.Sym.Objects[name]; ok {
		return constOperand(num)
	}
	if num, ok := rc.gen.Sym.Attributes[name]; ok {
		return constOperand(num)
	}
	if cv, ok := rc.gen.Sym.Constants[name]; ok {
		return rc.resolveOperand(cv)
	}
	if strings.EqualFold(name, "T") {
		return constOperand(1)
	}
	if _, ok := rc.gen.Sym.Routines[name]; ok {
		return Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.RoutineCall, RelocIndex: routineIndex(rc.gen, name)}
	}
	return constOperand(0)
}

// routineIndex assigns a stable relocation index to a routine name; codegen
// reuses the name itself as the index key in internal/assemble's routine
// address table, so the numeric id only needs to be unique per name within
// one compile (a simple incrementing registry keyed by name).
func routineIndex(g *Gen, name string) int {
	return g.routineIndexFor(name)
}

// resolveForm lowers a value-producing Form: either a known
// arithmetic/accessor opcode (stores to the stack and returns Variable 0)
// or a routine CALL (same convention).
func (rc *routineCtx) resolveForm(f *ast.Form) Operand {
	op := strings.ToUpper(f.Operator)
	if info, ok := ops[op]; ok && info.hasStore {
		rc.emitOpInfo(info, f.Operands, true)
		return varOperand(0)
	}
	if _, ok := rc.gen.Sym.Routines[op]; ok {
		rc.emitCall(op, f.Operands, true)
		return varOperand(0)
	}
	// Unknown nested form in value position: emit it as a statement for
	// its side effects (if any) and yield a falsy placeholder value.
	_ = rc.emitStatement(f)
	return constOperand(0)
}

// emitOpInfo emits a 1OP/2OP/VAR instruction per info, optionally with a
// trailing store byte targeting the stack (variable 0) when used in value
// position; statement position ignores the pushed value (spec section
// 4.8's instruction encoding is fixed regardless of whether the caller
// consumes the result).
func (rc *routineCtx) emitOpInfo(info opInfo, operands []ast.Node, wantStore bool) {
	ops := make([]Operand, len(operands))
	for i, o := range operands {
		ops[i] = rc.resolveOperand(o)
	}
	switch info.family {
	case "1OP":
		var o Operand
		if len(ops) > 0 {
			o = ops[0]
		}
		rc.buf.emit1OP(info.num, o)
	case "2OP":
		var a, b Operand
		if len(ops) > 0 {
			a = ops[0]
		}
		if len(ops) > 1 {
			b = ops[1]
		}
		rc.buf.emit2OP(info.num, a, b)
	case "VAR":
		rc.buf.emitVAR(info.num, ops)
	}
	if info.hasStore {
		rc.buf.writeStore(0)
	}
}

func resolveOperands(rc *routineCtx, nodes []ast.Node) []Operand {
	out := make([]Operand, len(nodes))
	for i, n := range nodes {
		out[i] = rc.resolveOperand(n)
	}
	return out
}
