package codegen

import (
	"strings"

	"zilc/internal/ast"
)

// emitTell lowers <TELL ...> into a sequence of primitive print
// instructions (spec section 4.8): a string literal prints directly; the
// marker atoms D/N/C select PRINTD/PRINTN/PRINTC for the following
// operand; CR/CRLF prints a newline; any other atom is looked up against
// the program's TELL-TOKENS table and its expansion is spliced in.
func (rc *routineCtx) emitTell(f *ast.Form) error {
	ops := f.Operands
	for i := 0; i < len(ops); i++ {
		switch v := ops[i].(type) {
		case *ast.String:
			rc.emitPrintString(v.Text)
		case *ast.CharLocalVar, *ast.CharGlobalVar:
			// %.NAME / %,NAME are carried through precisely so TELL
			// prints them as characters, not numbers (spec section 4.2).
			rc.buf.emitVAR(5, []Operand{rc.resolveOperand(v)}) // print_char
		case *ast.Atom:
			name := strings.ToUpper(v.Name)
			switch name {
			case "CR", "CRLF":
				rc.buf.emit0OP(11)
				continue
			case "D":
				i++
				if i < len(ops) {
					rc.buf.emit1OP(10, rc.resolveOperand(ops[i])) // print_obj
				}
				continue
			case "N":
				i++
				if i < len(ops) {
					rc.buf.emitVAR(6, []Operand{rc.resolveOperand(ops[i])}) // print_num
				}
				continue
			case "C":
				i++
				if i < len(ops) {
					rc.buf.emitVAR(5, []Operand{rc.resolveOperand(ops[i])}) // print_char
				}
				continue
			case "A":
				i++
				if i < len(ops) {
					rc.buf.emit1OP(7, rc.resolveOperand(ops[i])) // print_addr/PRINTB
				}
				continue
			}
			if body, ok := rc.gen.TellTokens[name]; ok {
				for _, stmt := range body {
					if err := rc.emitStatement(stmt); err != nil {
						return err
					}
				}
				continue
			}
			// A bare global/local/constant atom defaults to PRINTN,
			// the common ZIL convention for an unmarked numeric value.
			rc.buf.emitVAR(6, []Operand{rc.resolveOperand(v)})
		default:
			rc.buf.emitVAR(6, []Operand{rc.resolveOperand(v)})
		}
	}
	return nil
}
