// Package diag defines the error kinds and non-fatal diagnostics produced
// while building a documentation site.
//
// Fatal errors (MalformedMarkup, IOFailure) abort processing of a single
// file only. Diagnostics (UnresolvedLink, InvalidExample) are collected and
// reported at the end of a build.
package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMalformedMarkup indicates an unbalanced or unrecognised directive,
	// or an unterminated inline formatting code.
	ErrMalformedMarkup = errors.New("malformed markup")

	// ErrUnresolvedLink indicates a link whose target matched no symbol.
	ErrUnresolvedLink = errors.New("unresolved link")

	// ErrIOFailure indicates a source file could not be read or an output
	// file could not be written.
	ErrIOFailure = errors.New("io failure")

	// ErrInvalidExample indicates an embedded code example whose expected
	// output annotation is not well formed.
	ErrInvalidExample = errors.New("invalid example")
)

// MarkupError is returned by parsers when a source cannot be turned into a
// document tree.
type MarkupError struct {
	File      string
	Line      int    // 1-based line of the offending directive
	Directive string // e.g. "=end code", "=frobnicate", "C<"
	Msg       string
}

func (e *MarkupError) Error() string {
	loc := e.File
	if loc == "" {
		loc = "<input>"
	}
	if e.Directive != "" {
		return fmt.Sprintf("%s:%d: %s: %s", loc, e.Line, e.Msg, e.Directive)
	}
	return fmt.Sprintf("%s:%d: %s", loc, e.Line, e.Msg)
}

func (e *MarkupError) Unwrap() error { return ErrMalformedMarkup }

// IOError wraps a filesystem error for a single source or output file.
type IOError struct {
	Path string
	Op   string // "read", "write" or "remove"
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *IOError) Unwrap() []error { return []error{ErrIOFailure, e.Err} }

// Diagnostic is a non-fatal problem found in a document.
type Diagnostic struct {
	Kind    error  `json:"-"`
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// KindName returns a short stable name for the diagnostic's kind.
func (d Diagnostic) KindName() string {
	switch {
	case errors.Is(d.Kind, ErrUnresolvedLink):
		return "unresolved-link"
	case errors.Is(d.Kind, ErrInvalidExample):
		return "invalid-example"
	case errors.Is(d.Kind, ErrMalformedMarkup):
		return "malformed-markup"
	case errors.Is(d.Kind, ErrIOFailure):
		return "io-failure"
	}
	return "diagnostic"
}

// MarshalJSON adds the kind name, which is not otherwise serialisable.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	type plain Diagnostic
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{d.KindName(), plain(d)})
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.KindName(), d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, d.KindName(), d.Message)
}

// Sort orders diagnostics by file, line, then message.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Message < b.Message
	})
}

// Count returns how many diagnostics are of the given kind.
func Count(ds []Diagnostic, kind error) int {
	n := 0
	for _, d := range ds {
		if errors.Is(d.Kind, kind) {
			n++
		}
	}
	return n
}
