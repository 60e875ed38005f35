package ast

// Program collects every top-level category produced by the parser, in
// source order, plus the directive-derived policy fields spec section 3
// describes. Symbol tables populated from these vectors are immutable from
// code generation onward.
type Program struct {
	Routines  []*Routine
	Objects   []*Object
	Rooms     []*Room
	Syntaxes  []*Syntax
	Globals   []*Global
	Constants []*Constant
	Propdefs  []*Propdef
	Tables    []*Table
	Macros    []*Macro

	// TopForms holds every top-level form the parser did not recognise as a
	// built-in directive, in source order: typically calls to user macros
	// whose expansions produce definitions. The macro expander rewrites
	// these and absorbs any GLOBAL/CONSTANT forms they expand into.
	TopForms []Node

	Version int // default 3; overridden by -v or a VERSION directive

	// VersionSet records whether a VERSION directive was actually seen,
	// so a driver combining this with a -v CLI default can tell "source
	// said V3 explicitly" apart from "source never mentioned a version".
	VersionSet bool

	ObjectOrder ObjectOrderPolicy
	TreeOrder   ObjectOrderPolicy
	LongWords   bool

	TellTokens    []TellToken
	DefineGlobals []*DefineGlobals

	Buzzwords      []string
	Synonyms       [][]string
	BitSynonyms    []BitSynonym
	PrepSynonyms   []PrepSynonym
	RemoveSynonyms []string
	Directions     []string

	// ClearedProperties holds property specifiers the source explicitly
	// cleared, per spec section 3 ("Program... sets of cleared property
	// specifiers").
	ClearedProperties map[string]bool
}

// NewProgram returns an empty Program targeting the default version 3.
func NewProgram() *Program {
	return &Program{
		Version:           3,
		ClearedProperties: make(map[string]bool),
	}
}

// AllObjectLike returns objects followed by rooms as one combined list; rooms are objects with
// room-specific properties layered on top (spec section 3: Room is its own
// node kind but occupies the same object numbering space as Object).
func (p *Program) AllObjectLike() []ObjectLike {
	var out []ObjectLike
	for _, o := range p.Objects {
		out = append(out, ObjectLike{Name: o.Name, Properties: o.Properties, IsRoom: false})
	}
	for _, r := range p.Rooms {
		out = append(out, ObjectLike{Name: r.Name, Properties: r.Properties, IsRoom: true})
	}
	return out
}

// ObjectLike normalises Object and Room into one shape for the object-table
// builder, which does not otherwise care about the ROOM/OBJECT distinction.
type ObjectLike struct {
	Name       string
	Properties []Property
	IsRoom     bool
}
