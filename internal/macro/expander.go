package macro

import (
	"fmt"

	"zilc/internal/ast"
)

// expander carries the walk state for one Expand fixpoint iteration.
type expander struct {
	table   *Table
	prog    *ast.Program
	changed bool

	// meta is true while expanding a macro body, a quasiquote unquote, or
	// an EVAL argument: only there does the meta-interpreter evaluate
	// LIST/FORM/MAPF-style operations. Ordinary routine code keeps those
	// forms intact for the code generator.
	meta bool
}

// codeContextNative lists the meta-interpreter operations that evaluate at
// compile time even when written directly in ordinary code, outside any
// macro body (spec section 4.4: IFFLAG checks registered compilation flags
// wherever it appears; EVAL's GLOBAL/CONSTANT registration is a top-level
// effect).
var codeContextNative = map[string]bool{"EVAL": true, "IFFLAG": true}

// expandList expands every node of a body/operand list in place, splicing
// any SpliceResult produced by a "!.NAME"/"~!" splice into the surrounding
// list (spec section 4.4, quasi-quote protocol and substitution rules).
func (ex *expander) expandList(nodes []ast.Node, env *Env) ([]ast.Node, error) {
	var out []ast.Node
	for _, n := range nodes {
		// "!.NAME" at an operand position splices a bound list into the
		// surrounding operand list (spec section 4.4, "Substitution
		// rules"); the lexer emits it as one ATOM token since '!' and '.'
		// are both atom constituents.
		if a, ok := n.(*ast.Atom); ok {
			if name, isSplice := splicedLocalName(a.Name); isSplice {
				if bound, ok := env.get(name); ok {
					out = append(out, listItems(deepCopy(bound))...)
					continue
				}
			}
		}
		v, err := ex.expandOne(n, env)
		if err != nil {
			return nil, err
		}
		if sr, ok := v.(*ast.SpliceResult); ok {
			out = append(out, sr.Items...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// splicedLocalName reports whether s is the "!.NAME" splice notation and,
// if so, returns NAME.
func splicedLocalName(s string) (string, bool) {
	if len(s) > 2 && s[0] == '!' && s[1] == '.' {
		return s[2:], true
	}
	return "", false
}

// expandOne expands a single node: recurses into Form operands first
// (innermost-out, matching the original's expansion order), then checks
// whether the form's operator is a registered macro and, if so, invokes
// it; otherwise, dispatches native compile-time operators (COND/REPEAT
// nested structure is walked structurally, not as a generic Form).
func (ex *expander) expandOne(n ast.Node, env *Env) (ast.Node, error) {
	switch v := n.(type) {
	case *ast.LocalVar:
		if bound, ok := env.get(v.Name); ok {
			return deepCopy(bound), nil
		}
		return n, nil
	case *ast.Form:
		return ex.expandForm(v, env)
	case *ast.Cond:
		nc := &ast.Cond{Base: v.Base}
		for _, cl := range v.Clauses {
			test, err := ex.expandOne(cl.Test, env)
			if err != nil {
				return nil, err
			}
			body, err := ex.expandList(cl.Body, env)
			if err != nil {
				return nil, err
			}
			nc.Clauses = append(nc.Clauses, ast.CondClause{Test: test, Body: body})
		}
		return nc, nil
	case *ast.Repeat:
		nr := &ast.Repeat{Base: v.Base, Bindings: v.Bindings}
		body, err := ex.expandList(v.Body, env)
		if err != nil {
			return nil, err
		}
		nr.Body = body
		return nr, nil
	case *ast.Quasiquote:
		return ex.expandQuasiquote(v.Expr, env, 1)
	default:
		return n, nil
	}
}

// expandForm handles a generic <OP args...> node: it first expands every
// operand, then checks whether OP names a registered macro.
func (ex *expander) expandForm(f *ast.Form, env *Env) (ast.Node, error) {
	operands, err := ex.expandList(f.Operands, env)
	if err != nil {
		return nil, err
	}
	if m, ok := ex.table.Lookup(f.Operator); ok {
		ex.changed = true
		return ex.invoke(m, operands, f)
	}
	if ex.meta || codeContextNative[f.Operator] {
		saved := ex.meta
		ex.meta = true
		res, handled, err := ex.table.evalNative(ex, f.Operator, operands, env)
		ex.meta = saved
		if handled {
			if err != nil {
				return nil, err
			}
			ex.changed = true
			return res, nil
		}
	}
	return &ast.Form{Base: f.Base, Operator: f.Operator, Operands: operands}, nil
}

// invoke binds args against m's parameter list and expands the macro body,
// then unwraps a trailing QUOTE per spec section 4.4.
func (ex *expander) invoke(m *ast.Macro, args []ast.Node, call *ast.Form) (ast.Node, error) {
	env := newEnv(nil)
	ai := 0
	for _, p := range m.Params {
		switch p.PKind {
		case ast.ParamTuple:
			rest := append([]ast.Node{}, args[ai:]...)
			env.set(p.Name, &ast.Form{Operator: "LIST", Operands: rest})
			ai = len(args)
		case ast.ParamOptional:
			if ai < len(args) {
				env.set(p.Name, args[ai])
				ai++
			} else {
				env.set(p.Name, unassigned)
			}
		case ast.ParamAux:
			env.set(p.Name, unassigned)
		default: // ParamQuoted / ParamPlain: required
			if ai >= len(args) {
				return nil, fmt.Errorf("macro %s: too few arguments (got %d)", m.Name, len(args))
			}
			env.set(p.Name, args[ai])
			ai++
		}
	}
	if ai < len(args) {
		hasTuple := false
		for _, p := range m.Params {
			if p.PKind == ast.ParamTuple {
				hasTuple = true
			}
		}
		if !hasTuple {
			return nil, fmt.Errorf("macro %s: too many arguments (got %d)", m.Name, len(args))
		}
	}
	saved := ex.meta
	ex.meta = true
	var result ast.Node
	for _, stmt := range m.Body {
		v, err := ex.expandOne(stmt, env)
		if err != nil {
			ex.meta = saved
			return nil, err
		}
		result = v
	}
	ex.meta = saved
	if result == nil {
		result = &ast.Form{Operator: "LIST"}
	}
	if q, ok := result.(*ast.Form); ok && q.Operator == "QUOTE" && len(q.Operands) == 1 {
		result = q.Operands[0]
	}
	// A <CHTYPE list SPLICE> result splices its items inline into the
	// calling form's operand list (spec section 4.4).
	if ch, ok := result.(*ast.Form); ok && ch.Operator == "CHTYPE" && len(ch.Operands) == 2 {
		if tag, ok := ch.Operands[1].(*ast.Atom); ok && tag.Name == "SPLICE" {
			return &ast.SpliceResult{Base: ch.Base, Items: listItems(ch.Operands[0])}, nil
		}
	}
	return result, nil
}

// absorbTopDefinitions scans expanded top-level forms for GLOBAL/CONSTANT
// definitions a macro expansion produced, registering each on the program
// (first-wins, like EVAL's cross-pass effects) and dropping it from the
// retained list; everything else is kept as-is.
func (ex *expander) absorbTopDefinitions(nodes []ast.Node) []ast.Node {
	var kept []ast.Node
	for _, n := range nodes {
		f, ok := n.(*ast.Form)
		if !ok {
			kept = append(kept, n)
			continue
		}
		switch f.Operator {
		case "GLOBAL":
			if name, ok := formNameAtom(f); ok {
				if !hasGlobal(ex.prog, name) {
					var initial ast.Node
					if len(f.Operands) > 1 {
						initial = f.Operands[1]
					}
					ex.prog.Globals = append(ex.prog.Globals, &ast.Global{Base: f.Base, Name: name, Initial: initial})
					ex.changed = true
				}
				continue
			}
		case "CONSTANT":
			if name, ok := formNameAtom(f); ok && len(f.Operands) > 1 {
				if !hasConstant(ex.prog, name) {
					ex.prog.Constants = append(ex.prog.Constants, &ast.Constant{Base: f.Base, Name: name, Value: f.Operands[1]})
					ex.changed = true
				}
				continue
			}
		}
		kept = append(kept, n)
	}
	return kept
}

func formNameAtom(f *ast.Form) (string, bool) {
	if len(f.Operands) == 0 {
		return "", false
	}
	a, ok := f.Operands[0].(*ast.Atom)
	if !ok {
		return "", false
	}
	return a.Name, true
}

// deepCopy returns a structural copy of n so a substituted parameter value
// is never aliased into two places in the tree (spec section 4.4,
// "Substitution rules").
func deepCopy(n ast.Node) ast.Node {
	switch v := n.(type) {
	case *ast.Atom:
		c := *v
		return &c
	case *ast.Number:
		c := *v
		return &c
	case *ast.String:
		c := *v
		return &c
	case *ast.LocalVar:
		c := *v
		return &c
	case *ast.GlobalVar:
		c := *v
		return &c
	case *ast.Form:
		c := &ast.Form{Base: v.Base, Operator: v.Operator}
		for _, o := range v.Operands {
			c.Operands = append(c.Operands, deepCopy(o))
		}
		return c
	case *ast.Cond:
		c := &ast.Cond{Base: v.Base}
		for _, cl := range v.Clauses {
			var body []ast.Node
			for _, b := range cl.Body {
				body = append(body, deepCopy(b))
			}
			c.Clauses = append(c.Clauses, ast.CondClause{Test: deepCopy(cl.Test), Body: body})
		}
		return c
	case *ast.Repeat:
		c := &ast.Repeat{Base: v.Base, Bindings: v.Bindings}
		for _, b := range v.Body {
			c.Body = append(c.Body, deepCopy(b))
		}
		return c
	default:
		return n
	}
}
