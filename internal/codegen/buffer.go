// Package codegen lowers routines and data tables to Z-machine bytecode,
// per spec section 4.8: two passes per routine (discovery, then emission),
// four operand-count instruction families, and five relocation classes
// resolved later by internal/assemble.
package codegen

import "zilc/internal/reloc"

// Buffer accumulates one routine's or table's bytes plus every relocation
// site within it, addressed relative to the buffer's own start; the
// assembler adds the buffer's final placement address to each Relocation's
// ByteOffset when it copies Bytes into the story image (spec section
// 4.10's fix-up sequence operates on absolute offsets).
type Buffer struct {
	Bytes  []byte
	Relocs []reloc.Relocation
}

func (b *Buffer) byte(v byte) { b.Bytes = append(b.Bytes, v) }

func (b *Buffer) word(v uint16) {
	b.Bytes = append(b.Bytes, byte(v>>8), byte(v))
}

// placeholder emits a 2-byte relocation site at the buffer's current
// offset, recording a Relocation the assembler will later overwrite.
func (b *Buffer) placeholder(kind reloc.Kind, index int) {
	off := len(b.Bytes)
	b.Relocs = append(b.Relocs, reloc.New(kind, off, index))
	b.word(reloc.Placeholder(kind, index))
}

// placeholderIndexBytes emits the positional TELL PRINT_PADDR marker form
// (spec section 4.8: "0x8D <hi> <lo> with positional fix-up") as a
// Width-1 relocation; the 0x8D opcode byte itself is emitted by the
// caller, this only writes and records the 2-byte index that follows it.
func (b *Buffer) placeholderIndexBytes(kind reloc.Kind, index int) {
	off := len(b.Bytes)
	b.Relocs = append(b.Relocs, reloc.NewByte(kind, off, index))
	b.byte(byte(index >> 8))
	b.byte(byte(index))
}

// Len reports the buffer's current byte length.
func (b *Buffer) Len() int { return len(b.Bytes) }
