// Package ztext implements Z-character text encoding and decoding, per spec
// section 4.5: 5-bit codes packed three to a 16-bit word, three alphabets
// selected by shift codes, ZSCII escapes for characters outside all three
// alphabets, and abbreviation-table lookups during encoding.
package ztext

import "strings"

// alphabet tables hold the characters of the three alphabets: A0 and A1
// occupy Z-char codes 6..31, A2 codes 7..31 (A2's code 6 is the ZSCII
// escape). Codes 0-5 are shared: 0 space, 1-3 abbreviation shifts, 4/5
// alphabet shifts (5 also pads the final word).
const (
	a0Table = "abcdefghijklmnopqrstuvwxyz"
	a1Table = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	a2Table = "\n0123456789.,!?_#'\"/\\-:()"
)

// Shift codes, common to every version from V3 on (spec section 4.5: V1-2
// use permanent shifts instead). Only this temporary-shift scheme is
// implemented; V1-2 targets are encoded with it as well.
const (
	codeSpace     = 0
	codeAbbrev1   = 1
	codeAbbrev2   = 2
	codeAbbrev3   = 3
	codeShiftA1   = 4
	codeShiftA2   = 5
	codeZSCIIEsc  = 6 // only meaningful while shifted into A2
	padCode       = 5
)

// AbbreviationSource is consulted at each encode position for the longest
// abbreviation match starting there; internal/abbrev.Table implements it.
type AbbreviationSource interface {
	// LongestMatch returns the abbreviation table (1-3) and within-table
	// index of the longest abbreviation starting at byte offset pos in s,
	// or ok=false if none matches.
	LongestMatch(s string, pos int) (table, index, length int, ok bool)
}

// Encoder packs strings into Z-character words for one target version.
type Encoder struct {
	Version int
	Abbrevs AbbreviationSource // nil disables abbreviation substitution
}

// NewEncoder returns an Encoder targeting version v (3..8).
func NewEncoder(v int) *Encoder { return &Encoder{Version: v} }

// DictWordCount returns how many 2-byte words a dictionary entry occupies
// for this encoder's version: 2 for V<=3, 3 for V>=4 (spec section 4.5).
func (e *Encoder) DictWordCount() int {
	if e.Version <= 3 {
		return 2
	}
	return 3
}

// Encode returns the packed Z-character words for s. If minWords > 0 the
// result is truncated or padded to exactly that many words (dictionary
// entries); otherwise it is padded only to the next word boundary.
func (e *Encoder) Encode(s string, minWords int) []uint16 {
	codes := e.zchars(s)
	if minWords > 0 {
		want := minWords * 3
		if len(codes) > want {
			codes = codes[:want]
		}
		for len(codes) < want {
			codes = append(codes, padCode)
		}
	} else {
		for len(codes)%3 != 0 {
			codes = append(codes, padCode)
		}
	}
	words := make([]uint16, len(codes)/3)
	for i := 0; i < len(words); i++ {
		c0, c1, c2 := codes[i*3], codes[i*3+1], codes[i*3+2]
		words[i] = uint16(c0)<<10 | uint16(c1)<<5 | uint16(c2)
	}
	if len(words) > 0 {
		words[len(words)-1] |= 0x8000
	}
	return words
}

// zchars produces the unpacked 5-bit code sequence for s, consulting the
// abbreviation source at each byte position first.
func (e *Encoder) zchars(s string) []int {
	var out []int
	for i := 0; i < len(s); {
		if e.Abbrevs != nil {
			if table, idx, length, ok := e.Abbrevs.LongestMatch(s, i); ok {
				out = append(out, table, idx)
				i += length
				continue
			}
		}
		n := e.encodeRune(s[i])
		out = append(out, n...)
		i++
	}
	return out
}

func (e *Encoder) encodeRune(ch byte) []int {
	if ch == ' ' {
		return []int{codeSpace}
	}
	if idx := strings.IndexByte(a0Table, ch); idx >= 0 {
		return []int{idx + 6}
	}
	if idx := strings.IndexByte(a1Table, ch); idx >= 0 {
		return []int{codeShiftA1, idx + 6}
	}
	if idx := strings.IndexByte(a2Table, ch); idx >= 0 {
		return []int{codeShiftA2, idx + 7}
	}
	// ZSCII escape: shift to A2, Z-char 6, then high5/low5 of the ZSCII code.
	z := int(ch)
	return []int{codeShiftA2, codeZSCIIEsc, (z >> 5) & 0x1f, z & 0x1f}
}

// Decode unpacks words back into a string, the inverse of Encode, used for
// round-trip verification in the tests of internal/assemble,
// internal/driver and this package.
func Decode(words []uint16) string {
	var codes []int
	for _, w := range words {
		codes = append(codes, int(w>>10)&0x1f, int(w>>5)&0x1f, int(w)&0x1f)
	}
	var sb strings.Builder
	shift := 0 // 0 = A0, 1 = A1, 2 = A2
	for i := 0; i < len(codes); i++ {
		c := codes[i]
		switch {
		case c == codeSpace:
			sb.WriteByte(' ')
			shift = 0
		case c == codeShiftA1 && shift == 0:
			shift = 1
		case c == codeShiftA2 && shift == 0:
			shift = 2
		case shift == 2 && c == codeZSCIIEsc:
			if i+2 < len(codes) {
				z := (codes[i+1] << 5) | codes[i+2]
				sb.WriteByte(byte(z))
				i += 2
			}
			shift = 0
		case c >= 6 && c <= 31:
			switch shift {
			case 0:
				sb.WriteByte(a0Table[c-6])
			case 1:
				sb.WriteByte(a1Table[c-6])
			case 2:
				sb.WriteByte(a2Table[c-7])
			}
			shift = 0
		default:
			shift = 0
		}
	}
	return sb.String()
}
