package preprocess

import (
	"strings"
	"testing"

	"zilc/internal/ctx"
)

type fakeFS map[string]string

func (f fakeFS) ReadFile(path string) ([]byte, error) {
	if s, ok := f[path]; ok {
		return []byte(s), nil
	}
	return nil, errNotFound(path)
}
func (f fakeFS) Stat(path string) bool { _, ok := f[path]; return ok }

type errNotFound string

func (e errNotFound) Error() string { return string(e) + ": not found" }

func newP(fs fakeFS, c *ctx.Context) *Preprocessor {
	return &Preprocessor{FS: fs, Ctx: c}
}

func TestCompilationFlagElided(t *testing.T) {
	c := ctx.New()
	p := newP(fakeFS{"/a.zil": `%<COMPILATION-FLAG FOO <T>> <ROUTINE GO () <QUIT>>`}, c)
	out, err := p.Process("/a.zil")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Flags["FOO"] {
		t.Errorf("expected FOO flag registered true")
	}
	if out != " <ROUTINE GO () <QUIT>>" {
		t.Errorf("got %q", out)
	}
}

func TestIfflagSelectsClause(t *testing.T) {
	c := ctx.New()
	c.Flags["DEBUG"] = true
	p := newP(fakeFS{}, c)
	out, err := p.Process0(`<IFFLAG (DEBUG <PRINTI "dbg">) (ELSE <PRINTI "prod">)>`)
	if err != nil {
		t.Fatal(err)
	}
	if out != `<PRINTI "dbg">` {
		t.Errorf("got %q", out)
	}
}

func TestVersionQSelectsZip(t *testing.T) {
	c := ctx.New()
	c.Version = 3
	p := newP(fakeFS{}, c)
	out, err := p.Process0(`<VERSION? (ZIP <A>) (EZIP <B>) (ELSE <C>)>`)
	if err != nil {
		t.Fatal(err)
	}
	if out != `<A>` {
		t.Errorf("got %q", out)
	}
}

func TestArithWhitelistAndGlobal(t *testing.T) {
	c := ctx.New()
	c.SETG["WIDTH"] = 10
	p := newP(fakeFS{}, c)
	out, err := p.Process0(`%<+ ,WIDTH 5>`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "15" {
		t.Errorf("got %q", out)
	}
}

func TestArithUnknownOpIsZero(t *testing.T) {
	c := ctx.New()
	p := newP(fakeFS{}, c)
	out, err := p.Process0(`%<WEIRDOP 1 2>`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "0" {
		t.Errorf("got %q", out)
	}
}

func TestNestedArith(t *testing.T) {
	c := ctx.New()
	p := newP(fakeFS{}, c)
	out, err := p.Process0(`%<+ 1 %<* 2 3>>`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "7" {
		t.Errorf("got %q", out)
	}
}

func TestControlCharNormalization(t *testing.T) {
	got := normalizeControlChars("a/^Lb^Lc")
	want := "a\nb\nc"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestLaxBracketRepair(t *testing.T) {
	c := ctx.New()
	p := &Preprocessor{FS: fakeFS{}, Ctx: c, LaxBrackets: true}
	got := p.repairBrackets(`<FOO >> <BAR`)
	want := `<FOO > <BAR>`
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

// Process0 is a test-only helper that runs the control-char/compile-time
// passes over a literal string without going through include resolution.
func (p *Preprocessor) Process0(src string) (string, error) {
	src = normalizeControlChars(src)
	return p.evalCompileTime(src)
}

func TestSetgRecordedForGassignedAndArith(t *testing.T) {
	c := ctx.New()
	p := newP(fakeFS{"/a.zil": `<SETG RELEASE 7>
%<COND (<GASSIGNED? RELEASE> YES) (T NO)>
%<+ ,RELEASE 1>`}, c)
	out, err := p.Process("/a.zil")
	if err != nil {
		t.Fatal(err)
	}
	if c.SETG["RELEASE"] != 7 {
		t.Fatalf("SETG RELEASE = %d, want 7", c.SETG["RELEASE"])
	}
	if !strings.Contains(out, "YES") {
		t.Errorf("expected GASSIGNED? clause selected, got %q", out)
	}
	if !strings.Contains(out, "8") {
		t.Errorf("expected ,RELEASE arithmetic to yield 8, got %q", out)
	}
	if !strings.Contains(out, "<SETG RELEASE 7>") {
		t.Errorf("bare SETG form should keep its text, got %q", out)
	}
}
