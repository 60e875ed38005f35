package lexer

import (
	"testing"

	"zilc/internal/token"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	toks, err := New("t.zil", []byte(src)).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	var ks []token.Kind
	for _, tok := range toks {
		ks = append(ks, tok.Kind)
	}
	return ks
}

func TestTokenizeBasicForm(t *testing.T) {
	ks := kinds(t, `<ROUTINE GO () <QUIT>>`)
	want := []token.Kind{
		token.LANGLE, token.ATOM, token.ATOM, token.LPAREN, token.RPAREN,
		token.LANGLE, token.ATOM, token.RANGLE, token.RANGLE, token.EOF,
	}
	if len(ks) != len(want) {
		t.Fatalf("got %v, want %v", ks, want)
	}
	for i := range want {
		if ks[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, ks[i], want[i])
		}
	}
}

func TestTokenizeVariables(t *testing.T) {
	toks, err := New("t.zil", []byte(`.FOO ,BAR %.BAZ %,QUUX`)).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		kind token.Kind
		name string
	}{
		{token.LOCAL_VAR, "FOO"},
		{token.GLOBAL_VAR, "BAR"},
		{token.CHAR_LOCAL_VAR, "BAZ"},
		{token.CHAR_GLOBAL_VAR, "QUUX"},
		{token.EOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Payload != w.name {
			t.Errorf("token %d: got %v(%q), want %v(%q)", i, toks[i].Kind, toks[i].Payload, w.kind, w.name)
		}
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := New("t.zil", []byte(`"a\nb\tc\"d\\e"`)).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.STRING {
		t.Fatalf("got kind %v", toks[0].Kind)
	}
	want := "a\nb\tc\"d\\e"
	if toks[0].Payload != want {
		t.Errorf("got %q, want %q", toks[0].Payload, want)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tests := []struct {
		src  string
		kind token.Kind
		num  int32
	}{
		{"42", token.NUMBER, 42},
		{"-7", token.NUMBER, -7},
		{"$1F", token.NUMBER, 31},
		{"*17*", token.NUMBER, 15},
		{"#2 101", token.NUMBER, 5},
		{"1ST?", token.ATOM, 0},
	}
	for _, tt := range tests {
		toks, err := New("t.zil", []byte(tt.src)).Tokenize()
		if err != nil {
			t.Fatalf("%s: %v", tt.src, err)
		}
		if toks[0].Kind != tt.kind {
			t.Errorf("%s: got kind %v, want %v", tt.src, toks[0].Kind, tt.kind)
			continue
		}
		if tt.kind == token.NUMBER && toks[0].Number != tt.num {
			t.Errorf("%s: got %d, want %d", tt.src, toks[0].Number, tt.num)
		}
	}
}

func TestSemicolonCommentVsSeparator(t *testing.T) {
	// Outside parens: ";word" is a single-token comment, fully elided.
	ks := kinds(t, `FOO ;BAR BAZ`)
	want := []token.Kind{token.ATOM, token.ATOM, token.EOF}
	if len(ks) != len(want) {
		t.Fatalf("got %v", ks)
	}

	// Inside parens, outside angles: ";WORD" is a SEMICOLON separator
	// followed by WORD as its own atom (ZILF synonym-list notation).
	ks2 := kinds(t, `(DOWN ;DOWN SOUTH)`)
	want2 := []token.Kind{
		token.LPAREN, token.ATOM, token.SEMICOLON, token.ATOM, token.ATOM, token.RPAREN, token.EOF,
	}
	if len(ks2) != len(want2) {
		t.Fatalf("got %v, want %v", ks2, want2)
	}
	for i := range want2 {
		if ks2[i] != want2[i] {
			t.Errorf("token %d: got %v want %v", i, ks2[i], want2[i])
		}
	}
}

func TestCommentBrackets(t *testing.T) {
	ks := kinds(t, `<FOO ;"a string comment" BAR>`)
	want := []token.Kind{token.LANGLE, token.ATOM, token.ATOM, token.RANGLE, token.EOF}
	if len(ks) != len(want) {
		t.Fatalf("got %v", ks)
	}

	ks2 := kinds(t, `<FOO ;<nested <angle> comment> BAR>`)
	want2 := []token.Kind{token.LANGLE, token.ATOM, token.ATOM, token.RANGLE, token.EOF}
	if len(ks2) != len(want2) {
		t.Fatalf("got %v", ks2)
	}
}

func TestCharLiteral(t *testing.T) {
	toks, err := New("t.zil", []byte(`!\A`)).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.CHAR_LIT || toks[0].Number != 'A' {
		t.Errorf("got %v/%d", toks[0].Kind, toks[0].Number)
	}
}

func TestQuasiquoteTokens(t *testing.T) {
	ks := kinds(t, "`<FOO ~BAR ~!BAZ>")
	want := []token.Kind{
		token.BACKTICK, token.LANGLE, token.ATOM, token.TILDE, token.ATOM,
		token.SPLICE, token.ATOM, token.RANGLE, token.EOF,
	}
	if len(ks) != len(want) {
		t.Fatalf("got %v, want %v", ks, want)
	}
	for i := range want {
		if ks[i] != want[i] {
			t.Errorf("token %d: got %v want %v", i, ks[i], want[i])
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := New("t.zil", []byte(`"unterminated`)).Tokenize()
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAtomEscape(t *testing.T) {
	toks, err := New("t.zil", []byte(`A?G\'S`)).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.ATOM || toks[0].Payload != "A?G'S" {
		t.Errorf("got %v %q", toks[0].Kind, toks[0].Payload)
	}
}

func TestControlDigraphsSkipped(t *testing.T) {
	ks := kinds(t, "FOO^/BAR")
	// ^/BAR: '^' followed by '/' consumes one more char (the 'B'), leaving "AR" as a separate atom.
	if len(ks) < 2 {
		t.Fatalf("got %v", ks)
	}
	if ks[0] != token.ATOM {
		t.Errorf("got %v", ks[0])
	}
}
