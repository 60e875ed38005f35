// Command zilc compiles a ZIL source program into a Z-machine story file,
// per spec section 6's command surface.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"zilc/internal/driver"
	"zilc/internal/zerr"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-o output] [-v 1..8] [-i file]... [--verbose] [--string-dedup] <input.zil>\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	outputPath := ""
	version := 3
	var includeExtra []string
	verbose := false
	stringDedup := false
	var input string

	i := 1
	for i < len(os.Args) {
		switch os.Args[i] {
		case "-o":
			if i+1 >= len(os.Args) {
				fmt.Fprintf(os.Stderr, "zilc: -o requires an argument\n")
				os.Exit(1)
			}
			outputPath = os.Args[i+1]
			i += 2
		case "-v":
			if i+1 >= len(os.Args) {
				fmt.Fprintf(os.Stderr, "zilc: -v requires an argument\n")
				os.Exit(1)
			}
			n, err := strconv.Atoi(os.Args[i+1])
			if err != nil || n < 1 || n > 8 {
				fmt.Fprintf(os.Stderr, "zilc: invalid version %q: expected 1..8\n", os.Args[i+1])
				os.Exit(1)
			}
			version = n
			i += 2
		case "-i":
			if i+1 >= len(os.Args) {
				fmt.Fprintf(os.Stderr, "zilc: -i requires an argument\n")
				os.Exit(1)
			}
			includeExtra = append(includeExtra, os.Args[i+1])
			i += 2
		case "--verbose":
			verbose = true
			i++
		case "--string-dedup":
			stringDedup = true
			i++
		default:
			if input != "" {
				fmt.Fprintf(os.Stderr, "zilc: unexpected argument %q (input already set to %q)\n", os.Args[i], input)
				os.Exit(1)
			}
			input = os.Args[i]
			i++
		}
	}

	if input == "" {
		usage()
		os.Exit(1)
	}
	if outputPath == "" {
		outputPath = driver.DefaultOutputPath(input, version)
	}

	opts := driver.Options{
		Input:        input,
		IncludeExtra: includeExtra,
		Version:      version,
		Verbose:      verbose,
		StringDedup:  stringDedup,
		SearchPath:   []string{filepath.Dir(input)},
	}
	if verbose {
		opts.Out = os.Stderr
	}

	result, err := driver.Compile(opts)
	if err != nil {
		reportError(err, stderrIsTerminal())
		os.Exit(1)
	}

	// Header byte 0 holds the resolved target version, which a VERSION
	// directive in the source may have set over -v.
	targetVersion := int(result.Bytes[0])

	if err := os.WriteFile(outputPath, result.Bytes, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "zilc: writing %s: %v\n", outputPath, err)
		os.Exit(1)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, version %d)\n", outputPath, len(result.Bytes), targetVersion)
	}
	os.Exit(0)
}

// reportError prints a fatal compile error to stderr, per spec section 7:
// "Errors go to standard error prefixed with file:line:column where
// available." Message text is reddened only on an interactive terminal,
// the same term.IsTerminal gate gmofishsauce-wut4/emul/main.go uses before
// touching terminal state, so piped/redirected output stays plain text.
func reportError(err error, tty bool) {
	msg := err.Error()
	if ce, ok := err.(*zerr.CompileError); ok {
		msg = ce.Error()
	}
	if tty {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m\n", msg)
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}
