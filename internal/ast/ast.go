// Package ast defines the tagged-sum AST produced by internal/parser,
// mutated in place by internal/macro, and read thereafter by every later
// phase (spec section 3, "Lifecycles"). Every constructor is a distinct
// Go type implementing Node, turning the original's runtime type probing
// into compile-time exhaustive dispatch (spec section 9).
package ast

// Position records where a node began in the original source.
type Position struct {
	File   string
	Line   int
	Column int
}

// Kind tags a Node's concrete type for dispatch without a type switch when
// only the tag, not the payload, is needed (e.g. macro native-op allowlist
// checks).
type Kind int

const (
	KAtom Kind = iota
	KNumber
	KString
	KLocalVar
	KGlobalVar
	KCharLocalVar
	KCharGlobalVar
	KForm
	KRoutine
	KObject
	KRoom
	KSyntax
	KGlobal
	KConstant
	KPropdef
	KTable
	KCond
	KRepeat
	KMacro
	KQuasiquote
	KUnquote
	KSpliceUnquote
	KSpliceResult
	KVersion
	KBuzz
	KSynonym
	KBitSynonym
	KPrepSynonym
	KRemoveSynonym
	KDirections
	KOrderObjects
	KOrderTree
	KLongWords
	KTellTokens
	KDefineGlobals
)

// Node is implemented by every AST constructor listed in spec section 3.
type Node interface {
	Kind() Kind
	Pos() Position
}

type Base struct {
	P Position
}

func (b Base) Pos() Position { return b.P }

// --- Literals and variable references ---

type Atom struct {
	Base
	Name string
}

func (Atom) Kind() Kind { return KAtom }

type Number struct {
	Base
	Value int32
}

func (Number) Kind() Kind { return KNumber }

type String struct {
	Base
	Text string
}

func (String) Kind() Kind { return KString }

type LocalVar struct {
	Base
	Name string
}

func (LocalVar) Kind() Kind { return KLocalVar }

type GlobalVar struct {
	Base
	Name string
}

func (GlobalVar) Kind() Kind { return KGlobalVar }

type CharLocalVar struct {
	Base
	Name string
}

func (CharLocalVar) Kind() Kind { return KCharLocalVar }

type CharGlobalVar struct {
	Base
	Name string
}

func (CharGlobalVar) Kind() Kind { return KCharGlobalVar }

// --- Generic form: anything <OP args...> not otherwise distinguished ---

type Form struct {
	Base
	Operator string
	Operands []Node
}

func (Form) Kind() Kind { return KForm }

// --- Routine ---

type Param struct {
	Name    string
	Default Node // non-nil only for optional params with a default value
}

type Routine struct {
	Base
	Name       string
	Required   []string
	Optional   []Param
	Aux        []Param
	Body       []Node
	Activation string // "" when the routine has no named activation atom
}

func (Routine) Kind() Kind { return KRoutine }

// --- Object / Room ---

// Property is one (NAME value...) entry in an OBJECT/ROOM body.
type Property struct {
	Name   string
	Values []Node // a single-expression property stores one element
}

type Object struct {
	Base
	Name       string
	Properties []Property
}

func (Object) Kind() Kind { return KObject }

type Room struct {
	Base
	Name       string
	Properties []Property
}

func (Room) Kind() Kind { return KRoom }

// --- Syntax (grammar) ---

type Syntax struct {
	Base
	Pattern       []string
	ActionRoutine string
	VerbSynonyms  []string
	ObjectFlags   [][]string
}

func (Syntax) Kind() Kind { return KSyntax }

// --- Globals / Constants ---

type Global struct {
	Base
	Name    string
	Initial Node // nil when uninitialised
}

func (Global) Kind() Kind { return KGlobal }

type Constant struct {
	Base
	Name  string
	Value Node
}

func (Constant) Kind() Kind { return KConstant }

// --- PROPDEF ---

type PropdefPattern struct {
	Params  []string
	Body    []Node
}

type Propdef struct {
	Base
	Name     string
	Default  Node
	Patterns []PropdefPattern
}

func (Propdef) Kind() Kind { return KPropdef }

// --- Tables ---

type TableKind int

const (
	TABLE TableKind = iota
	ITABLE
	LTABLE
)

type Table struct {
	Base
	TKind   TableKind
	Flags   []string
	Size    Node // non-nil only for ITABLE's explicit element count
	Values  []Node
	Pattern []string // optional element-pattern spec, e.g. (BYTE) or (STRING)
}

func (Table) Kind() Kind { return KTable }

// --- Control flow ---

type CondClause struct {
	Test Node
	Body []Node
}

type Cond struct {
	Base
	Clauses []CondClause
}

func (Cond) Kind() Kind { return KCond }

type RepeatBinding struct {
	Name    string
	Initial Node
}

type Repeat struct {
	Base
	Bindings []RepeatBinding
	ExitCond Node // nil when absent
	Body     []Node
}

func (Repeat) Kind() Kind { return KRepeat }

// --- Macro definitions ---

type MacroParamKind int

const (
	ParamPlain MacroParamKind = iota
	ParamQuoted
	ParamTuple
	ParamAux
	ParamOptional
)

type MacroParam struct {
	Name  string
	PKind MacroParamKind
}

type Macro struct {
	Base
	Name   string
	Params []MacroParam
	Body   []Node
}

func (Macro) Kind() Kind { return KMacro }

// --- Quasiquote protocol ---

type Quasiquote struct {
	Base
	Expr Node
}

func (Quasiquote) Kind() Kind { return KQuasiquote }

type Unquote struct {
	Base
	Expr Node
}

func (Unquote) Kind() Kind { return KUnquote }

type SpliceUnquote struct {
	Base
	Expr Node
}

func (SpliceUnquote) Kind() Kind { return KSpliceUnquote }

// SpliceResult carries a splice's evaluated items so the expansion driver
// can inline them into the surrounding operand list.
type SpliceResult struct {
	Base
	Items []Node
}

func (SpliceResult) Kind() Kind { return KSpliceResult }

// --- Top-level directives ---

type Version struct {
	Base
	Target int // resolved 1..8
}

func (Version) Kind() Kind { return KVersion }

type Buzz struct {
	Base
	Words []string
}

func (Buzz) Kind() Kind { return KBuzz }

type Synonym struct {
	Base
	Words []string // first word is canonical
}

func (Synonym) Kind() Kind { return KSynonym }

type BitSynonym struct {
	Base
	Orig, Alias string
}

func (BitSynonym) Kind() Kind { return KBitSynonym }

type PrepSynonym struct {
	Base
	Canonical string
	Synonyms  []string
}

func (PrepSynonym) Kind() Kind { return KPrepSynonym }

type RemoveSynonym struct {
	Base
	Word string
}

func (RemoveSynonym) Kind() Kind { return KRemoveSynonym }

type Directions struct {
	Base
	Names []string
}

func (Directions) Kind() Kind { return KDirections }

type ObjectOrderPolicy int

const (
	OrderDefined ObjectOrderPolicy = iota
	OrderRoomsFirst
	OrderReverseDefined
)

type OrderObjects struct {
	Base
	Policy ObjectOrderPolicy
}

func (OrderObjects) Kind() Kind { return KOrderObjects }

type OrderTree struct {
	Base
	Policy ObjectOrderPolicy
}

func (OrderTree) Kind() Kind { return KOrderTree }

type LongWords struct {
	Base
	Enabled bool
}

func (LongWords) Kind() Kind { return KLongWords }

type TellToken struct {
	Token      string
	Expansion  []Node
}

type TellTokens struct {
	Base
	Tokens []TellToken
}

func (TellTokens) Kind() Kind { return KTellTokens }

type DefineGlobalEntry struct {
	Name  string
	Kind  string // "" (word) or "BYTE"
	Value Node
}

type DefineGlobals struct {
	Base
	Table   string
	Entries []DefineGlobalEntry
}

func (DefineGlobals) Kind() Kind { return KDefineGlobals }
