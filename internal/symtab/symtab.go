// Package symtab builds the pre-pass symbol tables spec section 3
// describes: "Symbol tables (constants, globals, locals, routines,
// properties, flags, directions, dictionary words) are populated during a
// pre-pass over the program and are immutable during emission." Every later
// phase (codegen, objtable, assemble) reads from one *Table built once by
// Build.
package symtab

import (
	"sort"
	"strings"

	"zilc/internal/ast"
	"zilc/internal/zerr"
)

// maxAttributes returns the attribute-bit ceiling for version v, per spec
// section 3's invariants: 32 for V<=3, 48 for V>=4.
func maxAttributes(v int) int {
	if v <= 3 {
		return 32
	}
	return 48
}

// maxProperties returns the property-number ceiling for version v: 31 for
// V<=3, 63 for V>=4.
func maxProperties(v int) int {
	if v <= 3 {
		return 31
	}
	return 63
}

// Table collects every name->number assignment made during the pre-pass.
type Table struct {
	Version int

	// Objects maps an OBJECT/ROOM name to its 1-based object number;
	// index 0 is reserved for the null object per spec section 3.
	Objects    map[string]int
	ObjectList []string // object number i -> name, 1-based (ObjectList[0] unused)

	// Globals maps a GLOBAL name to its Z-machine variable number
	// (16..255); Locals within one routine are numbered separately by
	// codegen's per-routine discovery pass.
	Globals map[string]byte

	// Routines maps a ROUTINE name to its declaration, looked up by
	// codegen when lowering CALL forms.
	Routines map[string]*ast.Routine

	// Constants maps a CONSTANT name to its (already macro-expanded, not
	// yet evaluated) value expression; codegen resolves it to a literal
	// the first time it's referenced.
	Constants map[string]ast.Node

	// Properties maps a property name to its descending property number.
	Properties map[string]int

	// Attributes maps a flag/attribute name to its bit number.
	Attributes map[string]int

	// Directions lists direction names in declaration order; their
	// property numbers occupy the top of the property-number space
	// (spec section 3 invariant: "A direction's property number equals
	// (maxProperties - directionIndex)").
	Directions []string

	MaxAttributes int
	MaxProperties int
}

// reservedProps are never auto-assigned from object bodies because they
// have ZIL-wide conventional meaning resolved elsewhere (SYNONYM/ADJECTIVE
// feed the dictionary, not a property value; FLAGS feeds Attributes).
var reservedProps = map[string]bool{"SYNONYM": true, "ADJECTIVE": true, "FLAGS": true}

// Build runs the pre-pass over prog, assigning every symbol table entry
// before any code is generated.
func Build(prog *ast.Program) (*Table, error) {
	t := &Table{
		Version:       prog.Version,
		Objects:       make(map[string]int),
		Globals:       make(map[string]byte),
		Routines:      make(map[string]*ast.Routine),
		Constants:     make(map[string]ast.Node),
		Properties:    make(map[string]int),
		Attributes:    make(map[string]int),
		MaxAttributes: maxAttributes(prog.Version),
		MaxProperties: maxProperties(prog.Version),
	}

	// Every name is registered upper-cased: ZIL atoms are case-insensitive
	// and codegen looks symbols up by their upper-cased spelling.
	for _, r := range prog.Routines {
		name := strings.ToUpper(r.Name)
		if _, exists := t.Routines[name]; exists {
			return nil, zerr.At(zerr.Semantic, "", 0, 0, "routine %s redefined", r.Name)
		}
		t.Routines[name] = r
	}
	for _, c := range prog.Constants {
		t.Constants[strings.ToUpper(c.Name)] = c.Value
	}

	t.assignObjects(prog)

	// Globals start at variable number 16 (0 is the stack pointer pseudo
	// variable, 1..15 are locals within whichever routine is executing).
	gnum := byte(16)
	for _, g := range prog.Globals {
		name := strings.ToUpper(g.Name)
		if _, exists := t.Globals[name]; !exists {
			t.Globals[name] = gnum
			gnum++
		}
	}
	for _, dg := range prog.DefineGlobals {
		// The soft-globals table itself is addressable through a global
		// holding its base address, plus one global per entry (spec section
		// 6's DEFINE-GLOBALS directive).
		tname := strings.ToUpper(dg.Table)
		if _, exists := t.Globals[tname]; !exists {
			t.Globals[tname] = gnum
			gnum++
		}
		for _, e := range dg.Entries {
			name := strings.ToUpper(e.Name)
			if _, exists := t.Globals[name]; !exists {
				t.Globals[name] = gnum
				gnum++
			}
		}
	}

	t.Directions = append(t.Directions, prog.Directions...)

	t.assignAttributes(prog)
	t.assignProperties(prog)

	return t, nil
}

// objectOrder reorders names according to an ORDER-OBJECTS?/ORDER-TREE?
// policy; OrderDefined is a no-op (source order), OrderReverseDefined
// reverses it, OrderRoomsFirst is handled by the caller (it needs the
// room/object split, not just names).
func objectOrder(policy ast.ObjectOrderPolicy, names []string) []string {
	if policy != ast.OrderReverseDefined {
		return names
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[len(names)-1-i] = n
	}
	return out
}

func (t *Table) assignObjects(prog *ast.Program) {
	var roomNames, objNames []string
	for _, r := range prog.Rooms {
		roomNames = append(roomNames, r.Name)
	}
	for _, o := range prog.Objects {
		objNames = append(objNames, o.Name)
	}

	var order []string
	switch prog.ObjectOrder {
	case ast.OrderRoomsFirst:
		order = append(order, objectOrder(prog.TreeOrder, roomNames)...)
		order = append(order, objectOrder(prog.TreeOrder, objNames)...)
	default:
		all := append(append([]string{}, roomNames...), objNames...)
		order = objectOrder(prog.ObjectOrder, all)
	}

	t.ObjectList = append(t.ObjectList, "") // index 0: null object
	for i, name := range order {
		u := strings.ToUpper(name)
		t.Objects[u] = i + 1
		t.ObjectList = append(t.ObjectList, u)
	}
}

// assignAttributes scans every FLAGS property across objects and rooms,
// assigning bit numbers in first-seen order (spec section 3: attribute IDs
// lie in 0..31 for V<=3, 0..47 for V>=4).
func (t *Table) assignAttributes(prog *ast.Program) {
	next := 0
	see := func(ol ast.ObjectLike) {
		for _, p := range ol.Properties {
			if !strings.EqualFold(p.Name, "FLAGS") {
				continue
			}
			for _, v := range p.Values {
				if a, ok := v.(*ast.Atom); ok {
					name := strings.ToUpper(a.Name)
					if _, exists := t.Attributes[name]; !exists && next < t.MaxAttributes {
						t.Attributes[name] = next
						next++
					}
				}
			}
		}
	}
	for _, ol := range prog.AllObjectLike() {
		see(ol)
	}
}

// assignProperties numbers every non-reserved property name seen across
// objects/rooms, plus every PROPDEF name, in first-seen order counting
// down from the version's property ceiling, reserving the very top of the
// space for directions per the invariant in spec section 3.
func (t *Table) assignProperties(prog *ast.Program) {
	top := t.MaxProperties - len(t.Directions)
	for i, d := range t.Directions {
		t.Properties[strings.ToUpper(d)] = t.MaxProperties - i
	}
	if len(t.Directions) > 0 {
		// Spec section 6: "<DIRECTIONS ...> ... sets a LOW-DIRECTION
		// constant" naming the lowest property number occupied by a
		// direction, so generated code can range-test a property number
		// against it instead of naming every direction.
		t.Constants["LOW-DIRECTION"] = &ast.Number{Value: int32(top + 1)}
	}

	var order []string
	seen := make(map[string]bool)
	add := func(name string) {
		u := strings.ToUpper(name)
		if reservedProps[u] || seen[u] {
			return
		}
		seen[u] = true
		order = append(order, u)
	}
	for _, pd := range prog.Propdefs {
		add(pd.Name)
	}
	for _, ol := range prog.AllObjectLike() {
		for _, p := range ol.Properties {
			add(p.Name)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return false }) // preserve first-seen order

	next := top
	for _, name := range order {
		if next < 1 {
			break
		}
		t.Properties[name] = next
		next--
	}
}
