// Package validate checks embedded code examples without executing them.
package validate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
)

// outputMarker introduces an expected-output annotation in example code,
// e.g. `say 42; # OUTPUT: «42␤»`.
const outputMarker = "# OUTPUT:"

// checkedLangs are the example languages whose annotations are inspected.
// An empty language means the documented language.
var checkedLangs = map[string]bool{
	"":      true,
	"raku":  true,
	"perl6": true,
}

// Examples returns InvalidExample diagnostics for the code blocks of tree.
// Blocks marked :skip-test, input/output blocks and blocks in other
// languages are ignored.
func Examples(tree *doctree.Tree) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, cb := range tree.CodeBlocks() {
		if cb.SkipTest() || cb.Config["block"] != "" || !checkedLangs[strings.ToLower(cb.Lang)] {
			continue
		}
		if strings.TrimSpace(cb.Text) == "" {
			out = append(out, invalid(tree.Source, cb.Line, "empty code example"))
			continue
		}
		for i, line := range strings.Split(cb.Text, "\n") {
			if msg := checkOutputLine(line); msg != "" {
				out = append(out, invalid(tree.Source, exampleLine(cb, i), msg))
			}
		}
	}
	return out
}

// exampleLine maps a line index within a code block to a source line.
func exampleLine(cb *doctree.Node, i int) int {
	if cb.Line == 0 {
		return 0
	}
	return cb.Line + i
}

// checkOutputLine validates every expected-output annotation on a line and
// returns a description of the first problem, or "".
func checkOutputLine(line string) string {
	rest := line
	for {
		idx := strings.Index(rest, outputMarker)
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx+len(outputMarker):], " \t")
		if !strings.HasPrefix(rest, "«") {
			return fmt.Sprintf("expected output must be wrapped in «»: %q", strings.TrimSpace(line))
		}
		end, ok := matchGuillemets(rest)
		if !ok {
			return fmt.Sprintf("unbalanced «» in expected output: %q", strings.TrimSpace(line))
		}
		rest = rest[end:]
	}
}

// matchGuillemets returns the byte offset just past the » that closes the
// « at the start of s.
func matchGuillemets(s string) (int, bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '«':
			depth++
		case '»':
			depth--
			if depth == 0 {
				return i + len("»"), true
			}
		}
	}
	return 0, false
}

func invalid(file string, line int, msg string) diag.Diagnostic {
	return diag.Diagnostic{Kind: diag.ErrInvalidExample, File: file, Line: line, Message: msg}
}
