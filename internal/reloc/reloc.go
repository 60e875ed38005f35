// Package reloc defines the typed relocation records emitted by
// internal/codegen and resolved by internal/assemble, per spec section 9's
// design note: placeholders carry an explicit kind instead of relying on
// positional convention, so the assembler's fix-up pass is a plain
// switch over Kind rather than re-deriving intent from bit patterns.
package reloc

// Kind tags what a Relocation's placeholder bytes mean and therefore how
// the assembler must rewrite them once final addresses are known.
type Kind int

const (
	// RoutineCall marks a CALL_VS/VN/VS2 operand referencing a routine's
	// packed address (spec section 4.8, "Packed addresses").
	RoutineCall Kind = iota
	// PrintPaddr marks a PRINT_PADDR operand referencing a string's packed
	// address.
	PrintPaddr
	// StringOperand marks the 0xFC00|idx placeholder for a deduplicated
	// string table entry used as a plain operand (not PRINT_PADDR).
	StringOperand
	// DictionaryWord marks the 0xFB00|idx placeholder for a vocabulary
	// word reference, including W?WORD lookups.
	DictionaryWord
	// TableBase marks the 0xFF00|idx placeholder for a table-base
	// reference embedded in a global.
	TableBase
	// DictBase marks the 0xFA00 placeholder for the dictionary's base
	// address.
	DictBase
	// PropertySynonym marks the 0x8000|off placeholder for a SYNONYM
	// property value.
	PropertySynonym
	// PropertyAdjective marks the 0xFE00|off placeholder for an ADJECTIVE
	// property value.
	PropertyAdjective
	// PropertyVoc marks the 0xFB00|idx placeholder for a VOC property
	// value emitted by a PROPDEF pattern.
	PropertyVoc
)

// Relocation records one fix-up site: ByteOffset is the absolute offset
// (in the assembler's working image) of the first byte to rewrite; Index
// disambiguates which symbol/string/word/table the placeholder refers to,
// interpreted according to Kind. Width is 1 for the single-byte
// PRINT_PADDR positional form, 2 otherwise.
type Relocation struct {
	Kind       Kind
	ByteOffset int
	Index      int
	Width      int
}

// New returns a 2-byte Relocation of the given kind.
func New(kind Kind, byteOffset, index int) Relocation {
	return Relocation{Kind: kind, ByteOffset: byteOffset, Index: index, Width: 2}
}

// NewByte returns a Width-1 positional Relocation, used for the
// TELL-expanded PRINT_PADDR encoding (spec section 4.8, "0x8D <hi> <lo>
// with positional fix-up").
func NewByte(kind Kind, byteOffset, index int) Relocation {
	return Relocation{Kind: kind, ByteOffset: byteOffset, Index: index, Width: 1}
}

// Placeholder returns the 16-bit sentinel codegen should emit at a
// relocation site before the real value is known, per spec section 4.8.
func Placeholder(kind Kind, index int) uint16 {
	switch kind {
	case TableBase:
		return 0xFF00 | uint16(index&0xFF)
	case DictBase:
		return 0xFA00
	case StringOperand, PrintPaddr:
		return 0xFC00 | uint16(index&0xFF)
	case DictionaryWord, PropertyVoc:
		return 0xFB00 | uint16(index&0xFF)
	case PropertySynonym:
		return 0x8000 | uint16(index&0x7FFF)
	case PropertyAdjective:
		return 0xFE00 | uint16(index&0xFF)
	case RoutineCall:
		return 0xFC00 | uint16(index&0xFF)
	default:
		return 0
	}
}
