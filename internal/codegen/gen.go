package codegen

import (
	"fmt"
	"strings"

	"zilc/internal/ast"
	"zilc/internal/ctx"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/zerr"
)

// Dictionary is the subset of internal/objtable.Dictionary codegen needs:
// resolving a W?WORD / VERB? reference to its vocabulary-placeholder index.
type Dictionary interface {
	Index(word string) (int, bool)
}

// Config carries the CLI-level switches that affect code generation.
type Config struct {
	Version     int
	StringDedup bool

	// Target selects the back end; defaults to ZMachine when left nil (see
	// New).
	Target Target
}

// Gen is the shared, read-only state for compiling every routine and
// table in one program: the symbol table, the deduplicated string pool,
// and the dictionary (for vocabulary relocations).
type Gen struct {
	Sym  *symtab.Table
	Pool *strtab.Pool
	Dict Dictionary
	Cfg  Config
	Ctx  *ctx.Context

	routineIdx   map[string]int
	RoutineOrder []string

	// TellTokens maps an uppercased TELL-TOKENS name to its expansion
	// body, spliced inline by TELL (spec section 6, "<TELL-TOKENS tok
	// expansion ...>").
	TellTokens map[string][]ast.Node
}

// New builds a Gen ready to compile routines and tables.
func New(sym *symtab.Table, pool *strtab.Pool, dict Dictionary, cfg Config, c *ctx.Context) *Gen {
	if cfg.Target == nil {
		cfg.Target = ZMachine{Version: cfg.Version}
	}
	return &Gen{Sym: sym, Pool: pool, Dict: dict, Cfg: cfg, Ctx: c, routineIdx: make(map[string]int), TellTokens: make(map[string][]ast.Node)}
}

// routineIndexFor assigns each routine name a stable index in first-use
// order; internal/assemble's routine-placement table is keyed the same
// way so a RoutineCall relocation's Index always lands on the right entry.
func (g *Gen) routineIndexFor(name string) int {
	if idx, ok := g.routineIdx[name]; ok {
		return idx
	}
	idx := len(g.RoutineOrder)
	g.routineIdx[name] = idx
	g.RoutineOrder = append(g.RoutineOrder, name)
	return idx
}

// Routine is one compiled routine: its header byte plus, for V<=4, one
// 16-bit default per local (spec section 4.8, "Routine header"), followed
// by its body bytecode and the relocations within it.
type Routine struct {
	Name       string
	LocalCount int
	Defaults   []uint16 // len == LocalCount, only meaningful for V<=4
	Header     []byte
	Body       *Buffer
}

// Bytes returns the routine's full byte image (header + body), used by
// internal/assemble to place routines in high memory; Body.Relocs offsets
// are relative to the start of Body, so assemble adds len(Header) to every
// Body relocation's ByteOffset before adding the routine's own base
// address.
func (r *Routine) Bytes() []byte {
	return append(append([]byte{}, r.Header...), r.Body.Bytes...)
}

// routineCtx is the per-routine compilation state: local-variable slots,
// label bookkeeping for COND/REPEAT, and the buffer being filled.
type routineCtx struct {
	gen    *Gen
	locals map[string]byte
	buf    *Buffer

	nextLabel int
	labelPos  map[int]int
	pendBr    []pendingBranch
	pendJmp   []pendingJump

	loopEnd []int
}

type pendingBranch struct {
	pos      int
	senseTrue bool
	label    int
}

type pendingJump struct {
	pos   int
	label int
}

func (rc *routineCtx) newLabel() int {
	rc.nextLabel++
	return rc.nextLabel
}

func (rc *routineCtx) defineLabel(id int) {
	rc.labelPos[id] = rc.buf.Len()
}

// emitBranchPlaceholder reserves the 2-byte long-form branch field (always
// long form, to keep backpatching simple). No branch is ever split into a
// short branch plus a jump: an offset outside the long form's 14-bit range
// is reported as an error by patch.
func (rc *routineCtx) emitBranchPlaceholder(senseTrue bool, label int) {
	pos := rc.buf.Len()
	rc.buf.byte(0)
	rc.buf.byte(0)
	rc.pendBr = append(rc.pendBr, pendingBranch{pos: pos, senseTrue: senseTrue, label: label})
}

// emitJumpPlaceholder emits an unconditional jump (1OP:12, long-constant
// form) whose signed 16-bit offset is patched once the target label's
// position is known.
func (rc *routineCtx) emitJumpPlaceholder(label int) {
	rc.buf.byte(0x8C)
	pos := rc.buf.Len()
	rc.buf.byte(0)
	rc.buf.byte(0)
	rc.pendJmp = append(rc.pendJmp, pendingJump{pos: pos, label: label})
}

// patch resolves every pending branch/jump against labelPos, per spec
// section 4.8: "Branch offsets within a routine are resolved locally
// before emission to high memory." The branch placeholder always reserves
// the 2-byte long form (see emitBranchPlaceholder), which covers every
// offset in the Z-machine's signed 14-bit branch range; an offset outside
// that range (spec section 4.8's "branch offset that exceeds ±8191"
// overflow case, and section 7's fatal-overflow policy) is reported rather
// than silently truncated into the wrong target.
func (rc *routineCtx) patch() error {
	for _, pb := range rc.pendBr {
		target, ok := rc.labelPos[pb.label]
		if !ok {
			continue
		}
		offset := target - (pb.pos + 2) + 2
		if !branchFitsLong(offset) {
			return fmt.Errorf("branch offset %d exceeds the Z-machine's +-8191 range; split the routine into smaller routines or recompile at a higher version", offset)
		}
		polarity := byte(0x80)
		if !pb.senseTrue {
			polarity = 0
		}
		u := uint16(offset) & 0x3FFF
		rc.buf.Bytes[pb.pos] = polarity | byte(u>>8)
		rc.buf.Bytes[pb.pos+1] = byte(u)
	}
	for _, pj := range rc.pendJmp {
		target, ok := rc.labelPos[pj.label]
		if !ok {
			continue
		}
		offset := target - (pj.pos + 2) + 2
		rc.buf.Bytes[pj.pos] = byte(uint16(offset) >> 8)
		rc.buf.Bytes[pj.pos+1] = byte(uint16(offset))
	}
	return nil
}

// Routine compiles one ROUTINE declaration: the discovery pass assigns
// local slots to required/optional/aux parameters, then the emission pass
// lowers the body (spec section 4.8).
func (g *Gen) Routine(r *ast.Routine) (*Routine, error) {
	rc := &routineCtx{
		gen:      g,
		locals:   make(map[string]byte),
		buf:      &Buffer{},
		labelPos: make(map[int]int),
	}
	var defaults []uint16
	slot := byte(1)
	assign := func(name string, def ast.Node) {
		if slot <= 15 {
			rc.locals[strings.ToUpper(name)] = slot
			slot++
		}
		defaults = append(defaults, constFold(g, def))
	}
	for _, p := range r.Required {
		assign(p, nil)
	}
	for _, p := range r.Optional {
		assign(p.Name, p.Default)
	}
	for _, p := range r.Aux {
		assign(p.Name, p.Default)
	}
	localCount := int(slot - 1)

	for _, stmt := range r.Body {
		if err := rc.emitStatement(stmt); err != nil {
			return nil, err
		}
	}
	// A routine whose body falls off the end returns the falsy value,
	// matching RFALSE, so callers always see a defined return value.
	rc.buf.emit0OP(1)
	if err := rc.patch(); err != nil {
		pos := r.Pos()
		return nil, zerr.At(zerr.Semantic, pos.File, pos.Line, pos.Column, "routine %s: %v", r.Name, err)
	}

	header := []byte{byte(localCount)}
	if g.Cfg.Version <= 4 {
		for _, d := range defaults {
			header = append(header, byte(d>>8), byte(d))
		}
	}
	return &Routine{Name: strings.ToUpper(r.Name), LocalCount: localCount, Defaults: defaults, Header: header, Body: rc.buf}, nil
}

// constFold evaluates a routine-local-default expression to a literal
// 16-bit value at compile time; only numeric literals and already-resolved
// CONSTANT references are legal here (spec section 4.8 routine header:
// "V<=4 follows with one 16-bit default per local").
func constFold(g *Gen, n ast.Node) uint16 {
	if n == nil {
		return 0
	}
	switch v := n.(type) {
	case *ast.Number:
		return uint16(v.Value)
	case *ast.Atom:
		if cv, ok := g.Sym.Constants[strings.ToUpper(v.Name)]; ok {
			return constFold(g, cv)
		}
	}
	return 0
}

func (rc *routineCtx) fail(n ast.Node, format string, args ...any) error {
	pos := n.Pos()
	return zerr.At(zerr.Semantic, pos.File, pos.Line, pos.Column, format, args...)
}
