// Package preprocess implements the text-level front end of spec section
// 4.1: include expansion, control-character normalisation, %<...> compile
// time evaluation, MDL macro elision, and opt-in lax bracket repair. Each
// pass is idempotent on its own output, so Process can be re-run safely.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"zilc/internal/ctx"
	"zilc/internal/zerr"
)

// FileSystem abstracts file access so tests can supply an in-memory tree
// without touching disk; *OS is the production implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) bool
}

// OS is the production FileSystem backed by the real filesystem.
type OS struct{}

func (OS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (OS) Stat(path string) bool                { _, err := os.Stat(path); return err == nil }

// Preprocessor expands includes and evaluates compile-time forms ahead of
// lexing, threading the shared compilation Context for SETG/flag state.
type Preprocessor struct {
	FS          FileSystem
	SearchPath  []string
	LaxBrackets bool
	Ctx         *ctx.Context
}

// New creates a Preprocessor using the real filesystem.
func New(c *ctx.Context, searchPath []string, laxBrackets bool) *Preprocessor {
	return &Preprocessor{FS: OS{}, SearchPath: searchPath, LaxBrackets: laxBrackets, Ctx: c}
}

// Process reads path and returns the fully preprocessed source text: includes
// expanded, control characters normalised, and %<...> forms evaluated.
func (p *Preprocessor) Process(path string) (string, error) {
	raw, err := p.FS.ReadFile(path)
	if err != nil {
		return "", zerr.New(zerr.FileNotFound, "%s: %v", path, err)
	}
	src := string(raw)
	src, err = p.expandIncludes(src, filepath.Dir(path))
	if err != nil {
		return "", err
	}
	src = normalizeControlChars(src)
	src, err = p.evalCompileTime(src)
	if err != nil {
		return "", err
	}
	if p.LaxBrackets {
		src = p.repairBrackets(src)
	}
	return src, nil
}

// ProcessConcatenated runs Process over root, then each extra file in order,
// joining them with the comment banner the CLI's -i option calls for.
func (p *Preprocessor) ProcessConcatenated(root string, extra []string) (string, error) {
	out, err := p.Process(root)
	if err != nil {
		return "", err
	}
	for _, f := range extra {
		part, err := p.Process(f)
		if err != nil {
			return "", err
		}
		out += fmt.Sprintf("\n;\"--- inserted from %s ---\"\n", f) + part
	}
	return out, nil
}

func normalizeControlChars(src string) string {
	src = strings.ReplaceAll(src, "/^L", "\n")
	src = strings.ReplaceAll(src, "^L", "\n")
	return src
}

// resolveInclude finds name relative to baseDir first, then along the
// configured search path, trying both the original and lower-case variants
// and optionally appending ".zil". It returns every path it tried so a
// failure can list them all.
func (p *Preprocessor) resolveInclude(name, baseDir string) (string, []string, error) {
	var tried []string
	candidates := []string{name, strings.ToLower(name)}
	dirs := append([]string{baseDir}, p.SearchPath...)
	for _, dir := range dirs {
		for _, cand := range candidates {
			variants := []string{cand, cand + ".zil"}
			for _, v := range variants {
				full := filepath.Join(dir, v)
				tried = append(tried, full)
				if p.FS.Stat(full) {
					return full, tried, nil
				}
			}
		}
	}
	return "", tried, zerr.FileSearch(name, tried)
}

// expandIncludes recursively replaces <IFILE "name"> and
// <INSERT-FILE "name" ...> forms with the resolved file's (recursively
// expanded) contents; relative includes inside the included file resolve
// against that file's own directory.
func (p *Preprocessor) expandIncludes(src, baseDir string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(src) {
		if src[i] == '"' {
			end := skipString(src, i)
			out.WriteString(src[i:end])
			i = end
			continue
		}
		if src[i] == '<' {
			if kw, argStart := matchDirective(src, i, "IFILE"); kw {
				name, after, ok := readQuotedArg(src, argStart)
				if ok {
					closeAt := findAngleClose(src, after)
					if closeAt > 0 {
						full, _, err := p.resolveInclude(name, baseDir)
						if err != nil {
							return "", err
						}
						raw, err := p.FS.ReadFile(full)
						if err != nil {
							return "", zerr.New(zerr.FileNotFound, "%s: %v", full, err)
						}
						expanded, err := p.expandIncludes(string(raw), filepath.Dir(full))
						if err != nil {
							return "", err
						}
						out.WriteString(expanded)
						i = closeAt + 1
						continue
					}
				}
			}
			if kw, argStart := matchDirective(src, i, "INSERT-FILE"); kw {
				name, after, ok := readQuotedArg(src, argStart)
				if ok {
					closeAt := findAngleClose(src, after)
					if closeAt > 0 {
						full, _, err := p.resolveInclude(name, baseDir)
						if err != nil {
							return "", err
						}
						raw, err := p.FS.ReadFile(full)
						if err != nil {
							return "", zerr.New(zerr.FileNotFound, "%s: %v", full, err)
						}
						expanded, err := p.expandIncludes(string(raw), filepath.Dir(full))
						if err != nil {
							return "", err
						}
						out.WriteString(expanded)
						i = closeAt + 1
						continue
					}
				}
			}
		}
		out.WriteByte(src[i])
		i++
	}
	return out.String(), nil
}

// matchDirective reports whether src[i:] begins with "<KEYWORD" (followed by
// whitespace), returning the offset right after the keyword and whitespace.
func matchDirective(src string, i int, keyword string) (bool, int) {
	j := i + 1
	if j+len(keyword) > len(src) || src[j:j+len(keyword)] != keyword {
		return false, 0
	}
	j += len(keyword)
	if j >= len(src) || !isSpace(src[j]) {
		return false, 0
	}
	for j < len(src) && isSpace(src[j]) {
		j++
	}
	return true, j
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func readQuotedArg(src string, i int) (string, int, bool) {
	if i >= len(src) || src[i] != '"' {
		return "", i, false
	}
	end := skipString(src, i)
	return src[i+1 : end-1], end, true
}

func skipString(src string, i int) int {
	j := i + 1
	for j < len(src) {
		if src[j] == '\\' {
			j += 2
			continue
		}
		if src[j] == '"' {
			return j + 1
		}
		j++
	}
	return j
}

// findAngleClose finds the '>' that closes the '<' already consumed, starting
// the scan at i, honouring nested angles and string literals.
func findAngleClose(src string, i int) int {
	depth := 1
	j := i
	for j < len(src) {
		switch src[j] {
		case '"':
			j = skipString(src, j)
			continue
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return j
			}
		}
		j++
	}
	return -1
}

// evalCompileTime processes %<...> reader forms and the bracket-level
// COMPILATION-FLAG/IFFLAG/VERSION? forms, in one left-to-right pass.
func (p *Preprocessor) evalCompileTime(src string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(src) {
		if src[i] == '"' {
			end := skipString(src, i)
			out.WriteString(src[i:end])
			i = end
			continue
		}
		isPercent := src[i] == '%' && i+1 < len(src) && src[i+1] == '<'
		isBare := src[i] == '<'
		if isPercent || isBare {
			start := i
			angleAt := i
			if isPercent {
				angleAt = i + 1
			}
			closeAt := findAngleClose(src, angleAt+1)
			if closeAt < 0 {
				out.WriteByte(src[i])
				i++
				continue
			}
			inner := src[angleAt+1 : closeAt]
			op, rest := firstAtom(inner)
			replacement, handled, err := p.evalForm(op, rest, isPercent)
			if err != nil {
				return "", err
			}
			if handled {
				out.WriteString(replacement)
				i = closeAt + 1
				continue
			}
			_ = start
		}
		out.WriteByte(src[i])
		i++
	}
	return out.String(), nil
}

func firstAtom(s string) (string, string) {
	s = strings.TrimLeft(s, " \t\r\n")
	j := 0
	for j < len(s) && !isSpace(s[j]) {
		j++
	}
	return s[:j], strings.TrimLeft(s[j:], " \t\r\n")
}

// evalForm dispatches one extracted form to its handler. handled is false
// when op isn't one recognised at this stage, in which case the original
// text (including delimiters) is left untouched by the caller.
func (p *Preprocessor) evalForm(op, rest string, isPercent bool) (string, bool, error) {
	switch strings.ToUpper(op) {
	case "COMPILATION-FLAG":
		name, r := firstAtom(rest)
		val, _ := firstAtom(r)
		truthy := strings.TrimSpace(val) != "<>" && strings.TrimSpace(val) != ""
		p.Ctx.Flags[name] = truthy
		return "", true, nil
	case "IFFLAG":
		return p.evalIfflag(rest)
	case "VERSION?":
		return p.evalVersionQ(rest)
	case "COND":
		if isPercent {
			return p.evalPercentCond(rest)
		}
	case "SETG":
		// Record the assignment so later %<COND <GASSIGNED? ...>> and
		// ,GLOBAL arithmetic references resolve; a %<SETG ...> is consumed
		// here, a bare <SETG ...> keeps its text for the later phases.
		name, r := firstAtom(rest)
		val, _ := firstAtom(r)
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			p.Ctx.SETG[name] = int32(n)
		}
		if isPercent {
			return "", true, nil
		}
	case "DEFMAC", "DEFINE":
		if isPercent {
			return "", true, nil
		}
	}
	if isPercent {
		return p.evalArith(op, rest)
	}
	return "", false, nil
}

// splitClauses splits a body of "(test body...) (test body...)" into its
// parenthesised clauses, honouring nested parens and strings.
func splitClauses(s string) []string {
	var clauses []string
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) || s[i] != '(' {
			break
		}
		depth := 1
		j := i + 1
		for j < len(s) && depth > 0 {
			if s[j] == '"' {
				j = skipString(s, j)
				continue
			}
			if s[j] == '(' {
				depth++
			} else if s[j] == ')' {
				depth--
			}
			j++
		}
		clauses = append(clauses, s[i+1:j-1])
		i = j
	}
	return clauses
}

func (p *Preprocessor) evalIfflag(rest string) (string, bool, error) {
	clauses := splitClauses(rest)
	for _, c := range clauses {
		tag, body := firstAtom(c)
		if strings.EqualFold(tag, "ELSE") {
			return body, true, nil
		}
		if p.Ctx.FlagTrue(tag) {
			return body, true, nil
		}
	}
	return "", true, nil
}

func (p *Preprocessor) evalVersionQ(rest string) (string, bool, error) {
	clauses := splitClauses(rest)
	names := map[string]int{"ZIP": 3, "EZIP": 4, "XZIP": 5, "YZIP": 6}
	for _, c := range clauses {
		tag, body := firstAtom(c)
		upper := strings.ToUpper(tag)
		if upper == "ELSE" {
			return body, true, nil
		}
		if v, ok := names[upper]; ok && v == p.Ctx.Version {
			return body, true, nil
		}
	}
	return "", true, nil
}

func (p *Preprocessor) evalPercentCond(rest string) (string, bool, error) {
	clauses := splitClauses(rest)
	for _, c := range clauses {
		test, body := firstTerm(c)
		if p.testTruthy(test) {
			return body, true, nil
		}
	}
	return "", true, nil
}

// firstTerm splits off one leading term: a whole balanced "<...>" form (so a
// test like <GASSIGNED? NAME> stays intact), otherwise a whitespace-bounded
// atom.
func firstTerm(s string) (string, string) {
	s = strings.TrimLeft(s, " \t\r\n")
	if strings.HasPrefix(s, "<") {
		if end := findAngleClose(s, 1); end >= 0 {
			return s[:end+1], strings.TrimLeft(s[end+1:], " \t\r\n")
		}
	}
	return firstAtom(s)
}

// testTruthy evaluates the tiny %<COND> test language: T, <>, <==? ,VAR N>,
// <GASSIGNED? NAME>.
func (p *Preprocessor) testTruthy(test string) bool {
	test = strings.TrimSpace(test)
	switch strings.ToUpper(test) {
	case "T":
		return true
	case "<>", "", "()":
		return false
	}
	if strings.HasPrefix(test, "<") && strings.HasSuffix(test, ">") {
		inner := test[1 : len(test)-1]
		op, r := firstAtom(inner)
		switch strings.ToUpper(op) {
		case "==?":
			a, b := firstAtom(r)
			av := p.resolveOperand(a)
			bv := p.resolveOperand(strings.TrimSpace(b))
			return av == bv
		case "GASSIGNED?":
			name, _ := firstAtom(r)
			_, ok := p.Ctx.SETG[name]
			return ok
		}
	}
	return false
}

func (p *Preprocessor) resolveOperand(s string) int32 {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ",") {
		return p.Ctx.SETG[s[1:]]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return int32(n)
	}
	return 0
}

var arithWhitelist = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	"MOD": true, "BAND": true, "BOR": true, "LSH": true,
}

// evalArith evaluates %<op args...> for the whitelisted arithmetic
// operators over numbers, ,GLOBAL references, and nested %<...> forms.
// Operators outside the whitelist are left as zero-valued placeholders.
func (p *Preprocessor) evalArith(op, rest string) (string, bool, error) {
	upper := strings.ToUpper(op)
	if !arithWhitelist[upper] {
		return "0", true, nil
	}
	var nums []int32
	args := splitTopLevelArgs(rest)
	for _, a := range args {
		a = strings.TrimSpace(a)
		if strings.HasPrefix(a, "%<") {
			closeAt := findAngleClose(a, 2)
			if closeAt > 0 {
				inner := a[2:closeAt]
				iop, irest := firstAtom(inner)
				sub, _, err := p.evalForm(iop, irest, true)
				if err != nil {
					return "", false, err
				}
				n, _ := strconv.ParseInt(strings.TrimSpace(sub), 10, 64)
				nums = append(nums, int32(n))
				continue
			}
		}
		nums = append(nums, p.resolveOperand(a))
	}
	if len(nums) == 0 {
		return "0", true, nil
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		switch upper {
		case "+":
			acc += n
		case "-":
			acc -= n
		case "*":
			acc *= n
		case "/":
			if n != 0 {
				acc /= n
			}
		case "MOD":
			if n != 0 {
				acc %= n
			}
		case "BAND":
			acc &= n
		case "BOR":
			acc |= n
		case "LSH":
			if n >= 0 {
				acc <<= uint(n)
			} else {
				acc >>= uint(-n)
			}
		}
	}
	return strconv.Itoa(int(acc)), true, nil
}

func splitTopLevelArgs(s string) []string {
	var args []string
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		if s[i] == '%' && i+1 < len(s) && s[i+1] == '<' {
			closeAt := findAngleClose(s, i+2)
			if closeAt > 0 {
				args = append(args, s[start:closeAt+1])
				i = closeAt + 1
				continue
			}
		}
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		args = append(args, s[start:i])
	}
	return args
}

// repairBrackets performs the opt-in lax-bracket pass: a single scan
// tracking angle-bracket depth outside strings, dropping extraneous '>' and
// closing unclosed forms at EOF.
func (p *Preprocessor) repairBrackets(src string) string {
	var out strings.Builder
	depth := 0
	i := 0
	for i < len(src) {
		ch := src[i]
		if ch == '"' {
			end := skipString(src, i)
			out.WriteString(src[i:end])
			i = end
			continue
		}
		if ch == '<' {
			depth++
			out.WriteByte(ch)
			i++
			continue
		}
		if ch == '>' {
			if depth == 0 {
				p.Ctx.Logf("lax-bracket: dropped extraneous '>' at byte %d", i)
				i++
				continue
			}
			depth--
			out.WriteByte(ch)
			i++
			continue
		}
		out.WriteByte(ch)
		i++
	}
	for depth > 0 {
		p.Ctx.Logf("lax-bracket: closed unterminated form at EOF")
		out.WriteByte('>')
		depth--
	}
	return out.String()
}
