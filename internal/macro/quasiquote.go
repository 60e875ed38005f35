package macro

import "zilc/internal/ast"

// expandQuasiquote implements the quasi-quote protocol of spec section 4.4:
// literal substructure is preserved; Unquote nodes are evaluated and
// inlined; SpliceUnquote nodes are evaluated and their list spliced into
// the surrounding operand list. Nested quasiquotes increase depth so an
// inner backtick's Unquote is left untouched until its own matching level.
func (ex *expander) expandQuasiquote(n ast.Node, env *Env, depth int) (ast.Node, error) {
	switch v := n.(type) {
	case *ast.Unquote:
		if depth == 1 {
			return ex.expandMeta(v.Expr, env)
		}
		inner, err := ex.expandQuasiquote(v.Expr, env, depth-1)
		if err != nil {
			return nil, err
		}
		return &ast.Unquote{Base: v.Base, Expr: inner}, nil
	case *ast.SpliceUnquote:
		if depth == 1 {
			val, err := ex.expandMeta(v.Expr, env)
			if err != nil {
				return nil, err
			}
			return &ast.SpliceResult{Base: v.Base, Items: listItems(val)}, nil
		}
		inner, err := ex.expandQuasiquote(v.Expr, env, depth-1)
		if err != nil {
			return nil, err
		}
		return &ast.SpliceUnquote{Base: v.Base, Expr: inner}, nil
	case *ast.Quasiquote:
		inner, err := ex.expandQuasiquote(v.Expr, env, depth+1)
		if err != nil {
			return nil, err
		}
		return &ast.Quasiquote{Base: v.Base, Expr: inner}, nil
	case *ast.Form:
		nf := &ast.Form{Base: v.Base, Operator: v.Operator}
		for _, o := range v.Operands {
			r, err := ex.expandQuasiquote(o, env, depth)
			if err != nil {
				return nil, err
			}
			if sr, ok := r.(*ast.SpliceResult); ok {
				nf.Operands = append(nf.Operands, sr.Items...)
				continue
			}
			nf.Operands = append(nf.Operands, r)
		}
		return nf, nil
	case *ast.LocalVar:
		// A bare .NAME inside a template (no leading ~) is left as literal
		// structure per the quasi-quote protocol; only ~/~! trigger
		// evaluation. Substitution for plain ".NAME" happens only outside
		// quasiquote context, via expandOne's LocalVar case.
		return n, nil
	default:
		return n, nil
	}
}

// expandMeta evaluates an unquoted expression with the meta-interpreter
// enabled: an unquote is by definition compile-time evaluation, even when
// the quasiquote appears outside a macro body.
func (ex *expander) expandMeta(n ast.Node, env *Env) (ast.Node, error) {
	saved := ex.meta
	ex.meta = true
	v, err := ex.expandOne(n, env)
	ex.meta = saved
	return v, err
}

// listItems unwraps a LIST-shaped Form (as produced by FORM/LIST/tuple
// params) into its element slice for splicing; any other node is treated
// as a single-element list.
func listItems(n ast.Node) []ast.Node {
	if f, ok := n.(*ast.Form); ok && (f.Operator == "LIST" || f.Operator == "") {
		return f.Operands
	}
	return []ast.Node{n}
}
