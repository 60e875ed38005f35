package reloc

import "testing"

func TestPlaceholderEncodings(t *testing.T) {
	cases := []struct {
		kind Kind
		idx  int
		want uint16
	}{
		{TableBase, 3, 0xFF03},
		{DictBase, 0, 0xFA00},
		{StringOperand, 5, 0xFC05},
		{DictionaryWord, 2, 0xFB02},
		{PropertySynonym, 0x10, 0x8010},
		{PropertyAdjective, 7, 0xFE07},
	}
	for _, c := range cases {
		got := Placeholder(c.kind, c.idx)
		if got != c.want {
			t.Errorf("Placeholder(%v, %d) = %#04x, want %#04x", c.kind, c.idx, got, c.want)
		}
	}
}

func TestNewRelocationWidths(t *testing.T) {
	r := New(RoutineCall, 100, 1)
	if r.Width != 2 {
		t.Errorf("New should default to Width 2, got %d", r.Width)
	}
	rb := NewByte(PrintPaddr, 200, 2)
	if rb.Width != 1 {
		t.Errorf("NewByte should set Width 1, got %d", rb.Width)
	}
}
