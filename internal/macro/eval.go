package macro

import (
	"fmt"
	"strconv"
	"strings"

	"zilc/internal/ast"
	"zilc/internal/lexer"
	"zilc/internal/parser"
)

// evalNative dispatches the meta-interpreter operations of spec section
// 4.4. It returns handled=false for any operator it does not recognise, so
// the caller falls back to treating the form as ordinary (unexpanded) code.
// Per "Errors caught by the evaluator leave the form unchanged rather than
// aborting compilation", callers that get a non-nil error from a handled
// operation should treat it as a soft failure upstream; the Table itself
// only returns hard errors for argument-count mismatches in invoke, which
// spec section 4.4 calls out as the one fatal macro-evaluation failure.
func (t *Table) evalNative(ex *expander, op string, args []ast.Node, env *Env) (ast.Node, bool, error) {
	switch op {
	case "QUOTE":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("QUOTE: want 1 arg, got %d", len(args))
		}
		return args[0], true, nil

	case "FORM":
		if len(args) == 0 {
			return nil, true, fmt.Errorf("FORM: want operator")
		}
		opAtom, ok := args[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("FORM: operator must be an atom")
		}
		return &ast.Form{Operator: opAtom.Name, Operands: args[1:]}, true, nil

	case "LIST":
		return &ast.Form{Operator: "LIST", Operands: args}, true, nil

	case "REST":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("REST: want 1 arg")
		}
		items := listItems(args[0])
		if len(items) == 0 {
			return &ast.Form{Operator: "LIST"}, true, nil
		}
		return &ast.Form{Operator: "LIST", Operands: items[1:]}, true, nil

	case "NTH":
		if len(args) != 2 {
			return nil, true, fmt.Errorf("NTH: want 2 args")
		}
		n, ok := asInt(args[1])
		if !ok {
			return nil, true, fmt.Errorf("NTH: index must be a number")
		}
		items := listItems(args[0])
		if n < 1 || int(n) > len(items) {
			return nil, true, fmt.Errorf("NTH: index %d out of range", n)
		}
		return items[n-1], true, nil

	case "EMPTY?":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("EMPTY?: want 1 arg")
		}
		return boolAtom(len(listItems(args[0])) == 0), true, nil

	case "LENGTH":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("LENGTH: want 1 arg")
		}
		return &ast.Number{Value: int32(len(listItems(args[0])))}, true, nil

	case "TYPE?":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("TYPE?: want 1 arg")
		}
		return &ast.Atom{Name: typeName(args[0])}, true, nil

	case "SPNAME":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("SPNAME: want 1 arg")
		}
		a, ok := args[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("SPNAME: arg must be an atom")
		}
		return &ast.String{Text: a.Name}, true, nil

	case "STRING":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(textOf(a))
		}
		return &ast.String{Text: sb.String()}, true, nil

	case "PARSE":
		if len(args) == 0 {
			return nil, true, fmt.Errorf("PARSE: want string")
		}
		s, ok := args[0].(*ast.String)
		if !ok {
			return nil, true, fmt.Errorf("PARSE: arg must be a string")
		}
		toks, err := lexer.New("<macro-parse>", []byte(s.Text)).Tokenize()
		if err != nil {
			return nil, true, err
		}
		// PARSE evaluates a single expression, not a whole program; reuse
		// the recursive-descent parser's expression entry point directly.
		n, err := parser.ParseSingleExpr(toks)
		if err != nil {
			return nil, true, err
		}
		return n, true, nil

	case "EVAL":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("EVAL: want 1 arg")
		}
		return t.evalTopLevelEffect(ex, args[0])

	case "GVAL":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("GVAL: want 1 arg")
		}
		a, ok := args[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("GVAL: arg must be an atom")
		}
		if v, ok := t.Ctx.SETG[a.Name]; ok {
			return &ast.Number{Value: v}, true, nil
		}
		return &ast.GlobalVar{Name: a.Name}, true, nil

	case "LVAL":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("LVAL: want 1 arg")
		}
		a, ok := args[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("LVAL: arg must be an atom")
		}
		if v, ok := env.get(a.Name); ok {
			return v, true, nil
		}
		return &ast.LocalVar{Name: a.Name}, true, nil

	case "SET", "SETG":
		if len(args) != 2 {
			return nil, true, fmt.Errorf("%s: want 2 args", op)
		}
		a, ok := args[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("%s: target must be an atom", op)
		}
		if op == "SETG" {
			if n, ok := asInt(args[1]); ok {
				t.Ctx.SETG[a.Name] = n
			}
		} else {
			env.set(a.Name, args[1])
		}
		return args[1], true, nil

	case "OR":
		for _, a := range args {
			if truthy(a) {
				return boolAtom(true), true, nil
			}
		}
		return boolAtom(false), true, nil

	case "AND":
		for _, a := range args {
			if !truthy(a) {
				return boolAtom(false), true, nil
			}
		}
		return boolAtom(true), true, nil

	case "NOT":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("NOT: want 1 arg")
		}
		return boolAtom(!truthy(args[0])), true, nil

	case "=?", "==?":
		if len(args) != 2 {
			return nil, true, fmt.Errorf("%s: want 2 args", op)
		}
		return boolAtom(nodesEqual(args[0], args[1])), true, nil

	case "N==?":
		if len(args) != 2 {
			return nil, true, fmt.Errorf("N==?: want 2 args")
		}
		return boolAtom(!nodesEqual(args[0], args[1])), true, nil

	case "ASSIGNED?":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("ASSIGNED?: want 1 arg")
		}
		return boolAtom(!isUnassigned(args[0])), true, nil

	case "COND":
		return t.evalCond(ex, args, env)

	case "IFFLAG":
		return t.evalIfflag(ex, args, env)

	case "MAPF", "MAPR":
		return t.evalMap(ex, op, args, env)

	case "FUNCTION":
		// A FUNCTION value is represented as its own Form so later EVAL/MAPF
		// calls can re-dispatch it; the compiler never emits FUNCTION values
		// as code, only the meta-interpreter consumes them.
		return &ast.Form{Operator: "FUNCTION", Operands: args}, true, nil
	}
	return nil, false, nil
}

// evalCond implements compile-time COND for the meta-interpreter (spec
// section 4.4: "COND (with short-circuit evaluation; atoms T, ELSE,
// OTHERWISE are always-true)"), reached when a macro body constructs a COND
// reflectively (e.g. via FORM) rather than writing it as literal source
// syntax, which the parser instead routes to *ast.Cond and the expander
// walks structurally (COND stays on the native-operation allowlist so
// ordinary runtime <COND ...> code is never captured here).
func (t *Table) evalCond(ex *expander, args []ast.Node, env *Env) (ast.Node, bool, error) {
	for _, clause := range args {
		f, ok := clause.(*ast.Form)
		if !ok || len(f.Operands) == 0 {
			continue
		}
		test := f.Operands[0]
		isTrue := truthy(test)
		if a, ok := test.(*ast.Atom); ok {
			if strings.EqualFold(a.Name, "T") || strings.EqualFold(a.Name, "ELSE") || strings.EqualFold(a.Name, "OTHERWISE") {
				isTrue = true
			}
		}
		if isTrue {
			var result ast.Node = &ast.Form{Operator: "LIST"}
			for _, stmt := range f.Operands[1:] {
				v, err := ex.expandOne(stmt, env)
				if err != nil {
					return nil, true, err
				}
				result = v
			}
			return result, true, nil
		}
	}
	return &ast.Form{Operator: "LIST"}, true, nil
}

func (t *Table) evalIfflag(ex *expander, args []ast.Node, env *Env) (ast.Node, bool, error) {
	for _, clause := range args {
		f, ok := clause.(*ast.Form)
		if !ok || len(f.Operands) == 0 {
			continue
		}
		nameAtom, ok := f.Operands[0].(*ast.Atom)
		if !ok {
			continue
		}
		name := nameAtom.Name
		isTrue := strings.EqualFold(name, "ELSE") || strings.EqualFold(name, "T") ||
			strings.EqualFold(name, "IN-ZILCH") || t.Ctx.Flags[name]
		if isTrue {
			var result ast.Node = &ast.Form{Operator: "LIST"}
			for _, stmt := range f.Operands[1:] {
				v, err := ex.expandOne(stmt, env)
				if err != nil {
					return nil, true, err
				}
				result = v
			}
			return result, true, nil
		}
	}
	return &ast.Form{Operator: "LIST"}, true, nil
}

// evalMap implements MAPF/MAPR: apply a FUNCTION value across one or more
// argument lists. MAPF collects each call's result; MAPR returns the last.
// A MAPSTOP/MAPRET signal is modelled as the function body producing a
// two-element LIST whose head is the atom MAPSTOP or MAPRET (spec section
// 4.4); MAPSTOP halts without recording the current result, MAPRET halts
// after recording it.
func (t *Table) evalMap(ex *expander, op string, args []ast.Node, env *Env) (ast.Node, bool, error) {
	if len(args) < 2 {
		return nil, true, fmt.Errorf("%s: want at least 2 args", op)
	}
	fn, ok := args[0].(*ast.Form)
	if !ok || fn.Operator != "FUNCTION" {
		return nil, true, fmt.Errorf("%s: first arg must be a FUNCTION", op)
	}
	lists := make([][]ast.Node, len(args)-1)
	n := -1
	for i, a := range args[1:] {
		lists[i] = listItems(a)
		if n == -1 || len(lists[i]) < n {
			n = len(lists[i])
		}
	}
	var results []ast.Node
	var last ast.Node = &ast.Form{Operator: "LIST"}
	for i := 0; i < n; i++ {
		callArgs := make([]ast.Node, len(lists))
		for j := range lists {
			callArgs[j] = lists[j][i]
		}
		v, stop, keep, err := t.callFunction(ex, fn, callArgs, env)
		if err != nil {
			return nil, true, err
		}
		last = v
		if keep {
			results = append(results, v)
		}
		if stop {
			break
		}
	}
	if op == "MAPR" {
		return last, true, nil
	}
	return &ast.Form{Operator: "LIST", Operands: results}, true, nil
}

// callFunction binds callArgs against a FUNCTION value's parameter list
// (first operand, same shape as a DEFMAC param list) and expands its body.
func (t *Table) callFunction(ex *expander, fn *ast.Form, callArgs []ast.Node, outer *Env) (val ast.Node, stop, keep bool, err error) {
	if len(fn.Operands) == 0 {
		return nil, false, false, fmt.Errorf("FUNCTION: empty definition")
	}
	paramList, ok := fn.Operands[0].(*ast.Form)
	if !ok {
		return nil, false, false, fmt.Errorf("FUNCTION: malformed parameter list")
	}
	env := newEnv(outer)
	mode := 0
	idx := 0
	for _, p := range paramList.Operands {
		if a, ok := p.(*ast.Atom); ok && strings.EqualFold(a.Name, "AUX") {
			mode = 1
			continue
		}
		name := paramName(p)
		if name == "" {
			continue
		}
		if mode == 1 {
			env.set(name, unassigned)
			continue
		}
		if idx < len(callArgs) {
			env.set(name, callArgs[idx])
			idx++
		} else {
			env.set(name, unassigned)
		}
	}
	keep = true
	for _, stmt := range fn.Operands[1:] {
		v, e := ex.expandOne(stmt, env)
		if e != nil {
			return nil, false, false, e
		}
		val = v
		if f, ok := v.(*ast.Form); ok && len(f.Operands) >= 1 {
			if tagAtom, ok := f.Operands[0].(*ast.Atom); ok {
				switch strings.ToUpper(tagAtom.Name) {
				case "MAPSTOP":
					return val, true, false, nil
				case "MAPRET":
					stop = true
				}
			}
		}
	}
	return val, stop, keep, nil
}

func paramName(n ast.Node) string {
	switch v := n.(type) {
	case *ast.Atom:
		return v.Name
	case *ast.Form:
		if v.Operator == "LIST" && len(v.Operands) > 0 {
			if a, ok := v.Operands[0].(*ast.Atom); ok {
				return a.Name
			}
		}
	}
	return ""
}

// evalTopLevelEffect implements EVAL's recognition of GLOBAL/CONSTANT
// sub-forms (spec section 4.4, "Cross-pass effects"): it registers a new
// top-level definition on ex.prog, first-wins on name collision, and
// returns the evaluated inner form as EVAL's own value.
func (t *Table) evalTopLevelEffect(ex *expander, arg ast.Node) (ast.Node, bool, error) {
	f, ok := arg.(*ast.Form)
	if !ok {
		v, err := ex.expandOne(arg, newEnv(nil))
		return v, true, err
	}
	switch f.Operator {
	case "GLOBAL":
		if len(f.Operands) < 1 {
			return nil, true, fmt.Errorf("EVAL GLOBAL: missing name")
		}
		name, ok := f.Operands[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("EVAL GLOBAL: name must be an atom")
		}
		if !hasGlobal(ex.prog, name.Name) {
			var initial ast.Node
			if len(f.Operands) > 1 {
				initial = f.Operands[1]
			}
			ex.prog.Globals = append(ex.prog.Globals, &ast.Global{Name: name.Name, Initial: initial})
			ex.changed = true
		}
		return &ast.Atom{Name: name.Name}, true, nil
	case "CONSTANT":
		if len(f.Operands) < 2 {
			return nil, true, fmt.Errorf("EVAL CONSTANT: missing value")
		}
		name, ok := f.Operands[0].(*ast.Atom)
		if !ok {
			return nil, true, fmt.Errorf("EVAL CONSTANT: name must be an atom")
		}
		if !hasConstant(ex.prog, name.Name) {
			ex.prog.Constants = append(ex.prog.Constants, &ast.Constant{Name: name.Name, Value: f.Operands[1]})
			ex.changed = true
		}
		return &ast.Atom{Name: name.Name}, true, nil
	default:
		v, err := ex.expandForm(f, newEnv(nil))
		return v, true, err
	}
}

func hasGlobal(p *ast.Program, name string) bool {
	for _, g := range p.Globals {
		if g.Name == name {
			return true
		}
	}
	return false
}

func hasConstant(p *ast.Program, name string) bool {
	for _, c := range p.Constants {
		if c.Name == name {
			return true
		}
	}
	return false
}

func asInt(n ast.Node) (int32, bool) {
	if v, ok := n.(*ast.Number); ok {
		return v.Value, true
	}
	return 0, false
}

func boolAtom(b bool) ast.Node {
	if b {
		return &ast.Atom{Name: "T"}
	}
	return &ast.Form{Operator: "LIST"} // <> / false, the empty list
}

func truthy(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Form:
		return v.Operator != "LIST" || len(v.Operands) > 0
	case *ast.Number:
		return v.Value != 0
	case nil:
		return false
	default:
		return true
	}
}

func typeName(n ast.Node) string {
	switch n.(type) {
	case *ast.Atom:
		return "ATOM"
	case *ast.String:
		return "STRING"
	case *ast.Number:
		return "FIX"
	case *ast.LocalVar:
		return "LVAL"
	case *ast.GlobalVar:
		return "GVAL"
	case *ast.Form:
		return "FORM"
	default:
		return "LIST"
	}
}

func textOf(n ast.Node) string {
	switch v := n.(type) {
	case *ast.String:
		return v.Text
	case *ast.Atom:
		return v.Name
	case *ast.Number:
		return strconv.Itoa(int(v.Value))
	default:
		return ""
	}
}

func nodesEqual(a, b ast.Node) bool {
	an, aok := a.(*ast.Number)
	bn, bok := b.(*ast.Number)
	if aok && bok {
		return an.Value == bn.Value
	}
	aa, aok := a.(*ast.Atom)
	ba, bok := b.(*ast.Atom)
	if aok && bok {
		return aa.Name == ba.Name
	}
	as, aok := a.(*ast.String)
	bs, bok := b.(*ast.String)
	if aok && bok {
		return as.Text == bs.Text
	}
	return false
}
