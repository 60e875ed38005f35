// Package ctx carries the mutable cross-phase state of a single compilation:
// the process-local SETG map consulted by preprocessor arithmetic, the set
// of registered compilation flags, and verbose-logging configuration. One
// Context is created per compile call and is never shared across compiles
// (spec section 5: the compiler is single-threaded and strictly
// pipeline-ordered; there is no concurrent or background use of this type).
package ctx

import (
	"fmt"
	"io"
)

// Context is threaded through every compiler phase by value of its pointer;
// each phase owns and mutates only the sub-state relevant to it.
type Context struct {
	// SETG is the process-local map of global values assigned via SETG,
	// consulted by %<...> compile-time arithmetic and %<COND ...>.
	SETG map[string]int32

	// Flags is the set of compilation flags registered via
	// <COMPILATION-FLAG NAME <T>|<>>.
	Flags map[string]bool

	// Version is the target Z-machine version (1..8), set by -v, a VERSION
	// directive, or the default of 3.
	Version int

	Verbose     bool
	StringDedup bool

	out io.Writer
}

// New creates an empty compilation context targeting the default version 3.
func New() *Context {
	return &Context{
		SETG:    make(map[string]int32),
		Flags:   make(map[string]bool),
		Version: 3,
	}
}

// SetOutput installs the writer used by Logf; nil disables logging.
func (c *Context) SetOutput(w io.Writer) { c.out = w }

// Logf writes a verbose progress line when Verbose is enabled.
func (c *Context) Logf(format string, args ...any) {
	if !c.Verbose || c.out == nil {
		return
	}
	fmt.Fprintf(c.out, format+"\n", args...)
}

// FlagTrue reports whether name is IN-ZILCH or was registered true.
func (c *Context) FlagTrue(name string) bool {
	if name == "IN-ZILCH" {
		return true
	}
	return c.Flags[name]
}
