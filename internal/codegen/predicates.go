package codegen

// predicateInfo describes a branch-producing 1OP/2OP instruction: its
// operand count, its operand-count family, and its opcode number within
// that family. emitBranchTest writes the opcode and its value operands and
// then appends the branch field. Each listed predicate's own condition is
// the instruction's intrinsic condition (e.g. ZERO? is jz); the fallback
// "is this value truthy" check built from jz inverts the branch sense,
// handled separately in emitBranchTest.
type predicateInfo struct {
	arity  int // 1 or 2; EQUAL? (je) takes 2..4 operands, handled specially
	family string
	num    byte
}

var predicates = map[string]predicateInfo{
	"ZERO?":   {1, "1OP", 0},
	"0?":      {1, "1OP", 0},
	"L?":      {2, "2OP", 2},
	"LESS?":   {2, "2OP", 2},
	"G?":      {2, "2OP", 3},
	"GRTR?":   {2, "2OP", 3},
	"DLESS?":  {2, "2OP", 4},
	"IGRTR?":  {2, "2OP", 5},
	"IN?":     {2, "2OP", 6},
	"BTST":    {2, "2OP", 7},
	"FSET?":   {2, "2OP", 10},
	"VERB?":   {1, "VAR", 0}, // compiled specially: compares ,PRSA to a dictionary word
}

// je (EQUAL?/=?/==?) is variadic (2..4 operands) and is handled directly in
// emitBranchTest rather than through the predicates table.
