package codegen

import (
	"strings"

	"zilc/internal/ast"
	"zilc/internal/reloc"
)

// emitStatement lowers one routine-body statement; its return value (if
// any) is discarded, matching ZIL's expression-statement semantics.
func (rc *routineCtx) emitStatement(n ast.Node) error {
	switch v := n.(type) {
	case *ast.Cond:
		return rc.emitCondStmt(v)
	case *ast.Repeat:
		return rc.emitRepeatStmt(v)
	case *ast.Form:
		return rc.emitFormStmt(v)
	default:
		rc.resolveOperand(n)
		return nil
	}
}

func (rc *routineCtx) emitFormStmt(f *ast.Form) error {
	op := strings.ToUpper(f.Operator)
	switch op {
	case "QUIT":
		rc.buf.emit0OP(10)
	case "RTRUE":
		rc.buf.emit0OP(0)
	case "RFALSE":
		rc.buf.emit0OP(1)
	case "CRLF", "NEW-LINE":
		rc.buf.emit0OP(11)
	case "USL", "SHOW-STATUS":
		rc.buf.emit0OP(12)
	case "PRINT", "PRINTI":
		return rc.emitPrintLiteral(f)
	case "PRINTR":
		if err := rc.emitPrintLiteral(f); err != nil {
			return err
		}
		rc.buf.emit0OP(11)
		rc.buf.emit0OP(0)
	case "TELL":
		return rc.emitTell(f)
	case "SET", "SETG":
		return rc.emitSet(f)
	case "RETURN":
		return rc.emitReturn(f)
	case "COND":
		return rc.emitCondStmt(condFromForm(f))
	default:
		if info, ok := ops[op]; ok {
			rc.emitOpInfo(info, f.Operands, false)
			return nil
		}
		if _, ok := rc.gen.Sym.Routines[op]; ok {
			rc.emitCall(op, f.Operands, false)
			return nil
		}
		if _, ok := predicates[op]; ok {
			// A predicate used as a bare statement (its branch result
			// unused): evaluate it purely for side effect via the
			// fallback test path, discarding the branch.
			label := rc.newLabel()
			rc.emitBranchTest(f, label, true)
			rc.defineLabel(label)
			return nil
		}
		// Unrecognised operator: resolve as a value expression and
		// discard the result, matching the macro expander's deferred-
		// native handling (unknown forms are never fatal here).
		rc.resolveOperand(f)
	}
	return nil
}

// condFromForm is unreachable in practice (the parser always produces
// *ast.Cond for <COND ...>), but keeps emitFormStmt's dispatch table total
// if a macro-generated Form literally named COND ever reaches emission.
func condFromForm(f *ast.Form) *ast.Cond {
	c := &ast.Cond{Base: f.Base}
	return c
}

func (rc *routineCtx) emitPrintLiteral(f *ast.Form) error {
	if len(f.Operands) == 0 {
		return nil
	}
	s, ok := f.Operands[0].(*ast.String)
	if !ok {
		return rc.fail(f, "PRINTI requires a string literal operand")
	}
	rc.emitPrintString(s.Text)
	return nil
}

// emitPrintString emits either an inline literal print (0OP:2, text packed
// directly after the opcode byte) or, when string deduplication is
// enabled, a print_paddr referencing the pooled, deduplicated encoding
// (spec section 4.9's dedup pass "records candidates for converting
// PRINTI to PRINT_PADDR").
func (rc *routineCtx) emitPrintString(text string) {
	if rc.gen.Cfg.StringDedup {
		e := rc.gen.Pool.Intern(text)
		rc.buf.byte(0x8D)
		rc.buf.placeholderIndexBytes(reloc.PrintPaddr, e.ID)
		return
	}
	rc.buf.emit0OP(2)
	for _, w := range rc.gen.Pool.InlineEncode(text) {
		rc.buf.word(w)
	}
}

func (rc *routineCtx) emitSet(f *ast.Form) error {
	if len(f.Operands) < 2 {
		return rc.fail(f, "SET/SETG requires a variable and a value")
	}
	var varNum byte
	switch v := f.Operands[0].(type) {
	case *ast.LocalVar:
		varNum = rc.locals[strings.ToUpper(v.Name)]
	case *ast.GlobalVar:
		varNum = rc.gen.Sym.Globals[strings.ToUpper(v.Name)]
	case *ast.Atom:
		// <SETG NAME value> with a bare atom naming the global (common
		// ZIL spelling alongside ,NAME).
		varNum = rc.gen.Sym.Globals[strings.ToUpper(v.Name)]
	default:
		return rc.fail(f, "SET/SETG target must be a variable reference")
	}
	val := rc.resolveOperand(f.Operands[1])
	rc.buf.emit2OP(13, varOperand(varNum), val)
	return nil
}

func (rc *routineCtx) emitReturn(f *ast.Form) error {
	if len(rc.loopEnd) > 0 {
		// RETURN inside a REPEAT breaks out of the innermost loop,
		// per spec section 4.8's REPEAT early-exit handling.
		rc.emitJumpPlaceholder(rc.loopEnd[len(rc.loopEnd)-1])
		return nil
	}
	if len(f.Operands) == 0 {
		rc.buf.emit0OP(0) // rtrue
		return nil
	}
	val := rc.resolveOperand(f.Operands[0])
	rc.buf.emit1OP(11, val) // ret
	return nil
}

// emitCondStmt lowers <COND (test body...) ... (T body...)> as a chain of
// test-and-branch-past-body sequences ending in a shared end label, per
// spec section 4.8.
func (rc *routineCtx) emitCondStmt(c *ast.Cond) error {
	end := rc.newLabel()
	for i, cl := range c.Clauses {
		isLast := i == len(c.Clauses)-1
		isElse := false
		if a, ok := cl.Test.(*ast.Atom); ok && a.Name == "T" {
			isElse = true
		}
		if isElse {
			for _, stmt := range cl.Body {
				if err := rc.emitStatement(stmt); err != nil {
					return err
				}
			}
			continue
		}
		next := rc.newLabel()
		rc.emitBranchTest(cl.Test, next, false)
		for _, stmt := range cl.Body {
			if err := rc.emitStatement(stmt); err != nil {
				return err
			}
		}
		if !isLast {
			rc.emitJumpPlaceholder(end)
		}
		rc.defineLabel(next)
	}
	rc.defineLabel(end)
	return nil
}

// emitRepeatStmt lowers <REPEAT (bindings...) body...> to a label, body,
// and unconditional jump back, per spec section 4.8; RETURN within the
// body targets the loop's end label (the "activation" REPEAT implicitly
// creates).
func (rc *routineCtx) emitRepeatStmt(r *ast.Repeat) error {
	for _, b := range r.Bindings {
		if b.Initial == nil {
			continue
		}
		if slot, ok := rc.locals[strings.ToUpper(b.Name)]; ok {
			val := rc.resolveOperand(b.Initial)
			rc.buf.emit2OP(13, varOperand(slot), val)
		}
	}
	top := rc.newLabel()
	end := rc.newLabel()
	rc.defineLabel(top)
	rc.loopEnd = append(rc.loopEnd, end)
	for _, stmt := range r.Body {
		if err := rc.emitStatement(stmt); err != nil {
			rc.loopEnd = rc.loopEnd[:len(rc.loopEnd)-1]
			return err
		}
	}
	rc.loopEnd = rc.loopEnd[:len(rc.loopEnd)-1]
	rc.emitJumpPlaceholder(top)
	rc.defineLabel(end)
	return nil
}

// emitCall lowers a routine invocation: CALL_VS (value used), CALL_VN
// (value discarded), or CALL_VS2/CALL_VN2 when more than 3 arguments are
// passed (V5+ double-operand-type-byte form), per spec section 4.8.
func (rc *routineCtx) emitCall(name string, argNodes []ast.Node, wantValue bool) {
	target := Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.RoutineCall, RelocIndex: routineIndex(rc.gen, name)}
	args := append([]Operand{target}, resolveOperands(rc, argNodes)...)
	var opnum byte
	switch {
	case len(args) > 4 && wantValue:
		opnum = 12 // call_vs2 (VAR:12)
	case len(args) > 4:
		opnum = 26 // call_vn2
	case wantValue:
		opnum = 0 // call_vs
	default:
		opnum = 25 // call_vn
	}
	rc.buf.emitVAR(opnum, args)
	if wantValue {
		rc.buf.writeStore(0)
	}
}

// emitBranchTest emits a test's own instruction (a known predicate
// fused with its branch field, or a generic value wrapped in a zero?
// fallback) branching to label when the test's truth value equals
// senseTrue.
func (rc *routineCtx) emitBranchTest(test ast.Node, label int, senseTrue bool) {
	if f, ok := test.(*ast.Form); ok {
		op := strings.ToUpper(f.Operator)
		switch op {
		case "EQUAL?", "=?", "==?":
			ops := resolveOperands(rc, f.Operands)
			if len(ops) > 4 {
				ops = ops[:4]
			}
			if len(ops) == 2 {
				rc.buf.emit2OP(1, ops[0], ops[1])
			} else {
				rc.buf.emit2OPVar(1, ops)
			}
			rc.emitBranchPlaceholder(senseTrue, label)
			return
		case "N==?", "N=?":
			ops := resolveOperands(rc, f.Operands)
			if len(ops) > 4 {
				ops = ops[:4]
			}
			if len(ops) == 2 {
				rc.buf.emit2OP(1, ops[0], ops[1])
			} else {
				rc.buf.emit2OPVar(1, ops)
			}
			rc.emitBranchPlaceholder(!senseTrue, label)
			return
		case "VERB?":
			rc.emitVerbTest(f, label, senseTrue)
			return
		}
		if info, ok := predicates[op]; ok {
			operands := resolveOperands(rc, f.Operands)
			switch info.family {
			case "1OP":
				var o Operand
				if len(operands) > 0 {
					o = operands[0]
				}
				rc.buf.emit1OP(info.num, o)
			case "2OP":
				var a, b Operand
				if len(operands) > 0 {
					a = operands[0]
				}
				if len(operands) > 1 {
					b = operands[1]
				}
				rc.buf.emit2OP(info.num, a, b)
			}
			rc.emitBranchPlaceholder(senseTrue, label)
			return
		}
	}
	// Fallback: treat any other expression as a truthiness check. jz's
	// intrinsic condition ("value == 0") is the negation of ZIL
	// truthiness, so the requested sense is inverted.
	val := rc.resolveOperand(test)
	rc.buf.emit1OP(0, val)
	rc.emitBranchPlaceholder(!senseTrue, label)
}

// emitVerbTest compiles <VERB? NAME...> to a chain of equality tests
// against the current parsed verb (global PRSA), comparing its dictionary
// word placeholder, per spec section 4.8's W?WORD-style vocabulary
// relocations.
func (rc *routineCtx) emitVerbTest(f *ast.Form, label int, senseTrue bool) {
	prsa, ok := rc.gen.Sym.Globals["PRSA"]
	if !ok {
		rc.emitBranchPlaceholder(!senseTrue, label)
		return
	}
	ops := []Operand{varOperand(prsa)}
	for _, o := range f.Operands {
		if a, ok := o.(*ast.Atom); ok {
			word := strings.ToLower(a.Name)
			if rc.gen.Dict != nil {
				if idx, ok := rc.gen.Dict.Index(word); ok {
					ops = append(ops, Operand{Type: LargeConstant, HasReloc: true, RelocKind: reloc.DictionaryWord, RelocIndex: idx})
					continue
				}
			}
		}
		ops = append(ops, constOperand(0))
	}
	if len(ops) > 4 {
		ops = ops[:4]
	}
	if len(ops) == 2 {
		rc.buf.emit2OP(1, ops[0], ops[1])
	} else {
		rc.buf.emit2OPVar(1, ops)
	}
	rc.emitBranchPlaceholder(senseTrue, label)
}
