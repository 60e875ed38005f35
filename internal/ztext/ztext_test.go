package ztext

import "testing"

func TestEncodeDecodeRoundTripLowercase(t *testing.T) {
	e := NewEncoder(3)
	words := e.Encode("the", 0)
	if len(words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(words))
	}
	got := Decode(words)
	if got != "the" {
		t.Errorf("got %q", got)
	}
}

func TestEncodeUppercaseUsesShift(t *testing.T) {
	e := NewEncoder(3)
	words := e.Encode("Hi", 0)
	got := Decode(words)
	if got != "Hi" {
		t.Errorf("got %q want Hi", got)
	}
}

func TestEncodePadsToWordBoundary(t *testing.T) {
	e := NewEncoder(3)
	words := e.Encode("ab", 0)
	if len(words) != 1 {
		t.Fatalf("expected 1 padded word, got %d", len(words))
	}
	if words[0]&0x8000 == 0 {
		t.Errorf("expected high bit set on final word")
	}
}

func TestDictWordTruncationByVersion(t *testing.T) {
	e3 := NewEncoder(3)
	words := e3.Encode("verylongdictionaryword", e3.DictWordCount())
	if len(words) != 2 {
		t.Errorf("V3 dict word should be 2 words, got %d", len(words))
	}
	e5 := NewEncoder(5)
	words5 := e5.Encode("verylongdictionaryword", e5.DictWordCount())
	if len(words5) != 3 {
		t.Errorf("V5 dict word should be 3 words, got %d", len(words5))
	}
}

func TestZSCIIEscapeForOutOfAlphabetChar(t *testing.T) {
	e := NewEncoder(3)
	words := e.Encode("a@b", 0)
	got := Decode(words)
	if got != "a@b" {
		t.Errorf("got %q want a@b", got)
	}
}

type fakeAbbrevs struct {
	match string
	table, idx int
}

func (f fakeAbbrevs) LongestMatch(s string, pos int) (table, index, length int, ok bool) {
	if pos+len(f.match) <= len(s) && s[pos:pos+len(f.match)] == f.match {
		return f.table, f.idx, len(f.match), true
	}
	return 0, 0, 0, false
}

func TestAbbreviationSubstitutionShortensEncoding(t *testing.T) {
	plain := NewEncoder(3).Encode("the lantern", 0)
	withAbbrev := &Encoder{Version: 3, Abbrevs: fakeAbbrevs{match: "the ", table: 1, idx: 0}}
	short := withAbbrev.Encode("the lantern", 0)
	if len(short) >= len(plain) {
		t.Errorf("expected abbreviation encoding to be shorter: plain=%d short=%d", len(plain), len(short))
	}
}
