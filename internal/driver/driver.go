// Package driver wires every compiler phase (internal/preprocess through
// internal/assemble) into the single Compile entry point cmd/zilc calls,
// per spec section 2's pipeline. It owns no logic of its own beyond
// sequencing: each phase's output feeds the next exactly as spec section 5
// describes ("each pass fully consumes its predecessor's output").
package driver

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"zilc/internal/assemble"
	"zilc/internal/ast"
	"zilc/internal/codegen"
	"zilc/internal/ctx"
	"zilc/internal/lexer"
	"zilc/internal/macro"
	"zilc/internal/objtable"
	"zilc/internal/optimize"
	"zilc/internal/parser"
	"zilc/internal/preprocess"
	"zilc/internal/strtab"
	"zilc/internal/symtab"
	"zilc/internal/zerr"
	"zilc/internal/ztext"
)

// Options carries every CLI-level switch that affects a compile, per spec
// section 6's command surface.
type Options struct {
	Input       string
	IncludeExtra []string
	Version     int
	Verbose     bool
	StringDedup bool
	LaxBrackets bool
	SearchPath  []string

	// Out receives --verbose progress lines; nil silences them
	// regardless of Verbose (spec section 6, "--verbose enables stepwise
	// progress logs to standard error").
	Out io.Writer
}

// Result is everything a caller might want out of a successful compile:
// the story file bytes ready to write to disk, the final memory layout
// (spec section 1's "auxiliary analysis utilities" out-of-scope
// collaborator reads this), and the optimisation report --verbose prints.
type Result struct {
	Bytes  []byte
	Layout *assemble.Layout
	Opt    optimize.Report
}

// Compile runs the full pipeline once, per spec section 5 ("the compiler
// is single-threaded and strictly pipeline-ordered"): a fresh Context and
// every phase's state belongs to this one call alone.
func Compile(opts Options) (*Result, error) {
	c := ctx.New()
	c.Version = opts.Version
	c.Verbose = opts.Verbose
	c.StringDedup = opts.StringDedup
	c.SetOutput(opts.Out)

	c.Logf("preprocessing %s", opts.Input)
	pre := preprocess.New(c, opts.SearchPath, opts.LaxBrackets)
	src, err := pre.ProcessConcatenated(opts.Input, opts.IncludeExtra)
	if err != nil {
		return nil, err
	}

	c.Logf("lexing")
	toks, err := lexer.New(opts.Input, []byte(src)).Tokenize()
	if err != nil {
		return nil, err
	}

	c.Logf("parsing")
	prog, err := parser.New(toks).ParseProgram()
	if err != nil {
		return nil, err
	}

	// A VERSION directive in source wins over the CLI's -v default (spec
	// section 6); absent one, the CLI value (or its own default of 3)
	// stands.
	version := opts.Version
	if prog.VersionSet {
		version = prog.Version
	}
	prog.Version = version
	c.Version = version

	c.Logf("expanding macros")
	if err := macro.New(c, prog.Macros).Expand(prog); err != nil {
		return nil, err
	}

	c.Logf("building symbol tables")
	sym, err := symtab.Build(prog)
	if err != nil {
		return nil, err
	}

	enc := ztext.NewEncoder(version)
	pool := strtab.New(enc)

	// Abbreviation selection must precede every encode: codegen's inline
	// PRINTI text and the object table's descriptions/property strings are
	// baked into their output bytes and never revisited, so the table has
	// to be on the encoder before either runs.
	c.Logf("selecting abbreviations")
	selected := optimize.SelectAbbreviations(optimize.StringCorpus(prog), enc)

	// Dictionary words never contain abbreviation references, so the
	// dictionary encodes through its own plain encoder.
	dict := objtable.BuildDictionary(ztext.NewEncoder(version), prog)
	for _, w := range dict.Warnings {
		c.Logf("warning: dictionary: %s", w)
	}

	gen := codegen.New(sym, pool, dict, codegen.Config{Version: version, StringDedup: opts.StringDedup, Target: codegen.ZMachine{Version: version}}, c)
	c.Logf("target: %s", gen.Cfg.Target.Name())
	for _, tt := range prog.TellTokens {
		gen.TellTokens[strings.ToUpper(tt.Token)] = tt.Expansion
	}

	c.Logf("generating routines")
	routines := make([]*codegen.Routine, 0, len(prog.Routines))
	for _, r := range prog.Routines {
		cr, err := gen.Routine(r)
		if err != nil {
			return nil, err
		}
		routines = append(routines, cr)
	}
	if len(routines) == 0 {
		return nil, zerr.New(zerr.Semantic, "no GO routine defined; zilc requires an entry routine named GO")
	}

	c.Logf("generating tables")
	tables := make([]*codegen.Buffer, 0, len(prog.Tables))
	for _, t := range prog.Tables {
		tables = append(tables, gen.Table(t))
	}
	globalTables := make(map[string]*codegen.Buffer)
	for _, g := range prog.Globals {
		if gt, ok := g.Initial.(*ast.Table); ok {
			globalTables[strings.ToUpper(g.Name)] = gen.Table(gt)
		}
	}
	for _, dg := range prog.DefineGlobals {
		globalTables[strings.ToUpper(dg.Table)] = gen.DefineGlobalsTable(dg)
	}

	c.Logf("building object table and dictionary")
	obj := objtable.Build(sym, prog, pool, enc, dict)

	c.Logf("running optimisation passes")
	rep := optimize.Run(pool, obj, selected, optimize.Config{StringDedup: opts.StringDedup})
	c.Logf("%d unique strings (%d uses), %d duplicate property payloads, %d abbreviations selected",
		rep.UniqueStrings, rep.TotalStringUses, rep.DuplicatePropertyPayloads, rep.AbbreviationsSelected)

	in := &assemble.Input{
		Prog:          prog,
		Sym:           sym,
		Gen:           gen,
		Routines:      routines,
		Tables:        tables,
		GlobalTables:  globalTables,
		Obj:           obj,
		Dict:          dict,
		Pool:          pool,
		Enc:           enc,
		AbbrevStrings: rep.Selected,
	}

	c.Logf("assembling story file")
	img, lay, err := assemble.Assemble(in)
	if err != nil {
		return nil, err
	}

	return &Result{Bytes: img, Layout: lay, Opt: rep}, nil
}

// DefaultOutputPath derives the conventional output path from the input
// path and target version: the input's basename with extension .zN (spec
// section 6, "-o path ... default is input basename with extension .zN").
func DefaultOutputPath(input string, version int) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return base + ".z" + strconv.Itoa(version)
}
