package strtab

import (
	"testing"

	"zilc/internal/ztext"
)

func TestInternDeduplicatesAndCountsUses(t *testing.T) {
	p := New(ztext.NewEncoder(3))
	a := p.Intern("lantern")
	b := p.Intern("lantern")
	if a != b {
		t.Fatal("expected identical text to share one entry")
	}
	if a.Uses != 2 {
		t.Fatalf("uses = %d, want 2", a.Uses)
	}
	if len(p.Entries()) != 1 {
		t.Fatalf("entries = %d, want 1", len(p.Entries()))
	}
}

func TestFinalizeAlignsEntriesToDivisor(t *testing.T) {
	p := New(ztext.NewEncoder(5))
	p.Intern("a")       // one word after padding: 2 bytes
	p.Intern("lantern") // starts after the 2-byte entry, must round up to 4
	out := p.Finalize(4)
	for _, e := range p.Entries() {
		if e.Offset%4 != 0 {
			t.Errorf("entry %q offset %d not aligned to 4", e.Text, e.Offset)
		}
	}
	off, ok := p.Offset(p.Entries()[1].ID)
	if !ok || off != 4 {
		t.Fatalf("second entry offset = %d (ok=%v), want 4", off, ok)
	}
	if len(out)%2 != 0 {
		t.Fatalf("table length %d not a whole number of words", len(out))
	}
}
