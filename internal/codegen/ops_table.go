package codegen

// opInfo describes a value-producing or side-effecting instruction keyed
// by its ZIL operator name: which operand-count family it belongs to, its
// opcode number within that family, and whether it carries a trailing
// store-variable byte (spec section 4.8's four operand-count families).
type opInfo struct {
	family   string // "1OP", "2OP", "VAR"
	num      byte
	hasStore bool
}

var ops = map[string]opInfo{
	// 2OP, store-producing
	"BOR":   {"2OP", 8, true},
	"BAND":  {"2OP", 9, true},
	"GET":   {"2OP", 15, true},
	"GETB":  {"2OP", 16, true},
	"GETP":  {"2OP", 17, true},
	"GETPT": {"2OP", 18, true},
	"NEXTP": {"2OP", 19, true},
	"+":     {"2OP", 20, true},
	"ADD":   {"2OP", 20, true},
	"-":     {"2OP", 21, true},
	"SUB":   {"2OP", 21, true},
	"*":     {"2OP", 22, true},
	"MUL":   {"2OP", 22, true},
	"/":     {"2OP", 23, true},
	"DIV":   {"2OP", 23, true},
	"MOD":   {"2OP", 24, true},

	// 2OP, no store (side effect only)
	"FSET":   {"2OP", 11, false},
	"FCLEAR": {"2OP", 12, false},
	"MOVE":   {"2OP", 14, false},

	// 1OP, store-producing
	"NEXT?":  {"1OP", 1, true}, // get_sibling
	"FIRST?": {"1OP", 2, true}, // get_child
	"LOC":    {"1OP", 3, true}, // get_parent
	"PTSIZE": {"1OP", 4, true}, // get_prop_len

	// 1OP, no store
	"INC":        {"1OP", 5, false},
	"DEC":        {"1OP", 6, false},
	"PRINT_ADDR": {"1OP", 7, false},
	"PRINTB":     {"1OP", 7, false},
	"REMOVE":     {"1OP", 9, false},
	"PRINTD":     {"1OP", 10, false},
	"PRINT_PADDR": {"1OP", 13, false},

	// VAR, store-producing
	"RANDOM": {"VAR", 7, true},

	// VAR, no store
	"PUTP":   {"VAR", 3, false},
	"PRINTC": {"VAR", 5, false},
	"PRINTN": {"VAR", 6, false},
	"PUSH":   {"VAR", 8, false},
}
