package main

import (
	"os"

	"golang.org/x/term"
)

// stderrIsTerminal reports whether stderr is an interactive terminal, the
// same guard gmofishsauce-wut4/emul/main.go checks with term.IsTerminal
// before flipping the terminal into raw mode. zilc has no raw-mode input
// to manage, but the same check decides whether a fatal error gets ANSI
// color: readable on an interactive terminal, plain text once piped or
// redirected to a log file.
func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
