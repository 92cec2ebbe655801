package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/podsite/internal/diag"
)

// FileStatus is the outcome of processing one source.
type FileStatus string

const (
	StatusRendered  FileStatus = "rendered"
	StatusUnchanged FileStatus = "unchanged" // rendered, output already up to date
	StatusFailed    FileStatus = "failed"
	StatusCancelled FileStatus = "cancelled"
)

// FileResult tracks a single source through the build.
type FileResult struct {
	Path   string     `json:"path"`
	Output string     `json:"output,omitempty"`
	Status FileStatus `json:"status"`
	Title  string     `json:"title,omitempty"`
	Error  string     `json:"error,omitempty"`

	// Internal: not serialized.
	err error
}

// Err returns the fatal error that failed the file, if any.
func (r FileResult) Err() error { return r.err }

func (r *FileResult) fail(err error) {
	r.Status = StatusFailed
	r.err = err
	r.Error = err.Error()
}

// Summary counts outcomes across a build.
type Summary struct {
	Files           int `json:"files"`
	Rendered        int `json:"rendered"`
	Unchanged       int `json:"unchanged"`
	Failed          int `json:"failed"`
	MalformedMarkup int `json:"malformed_markup"`
	IOFailures      int `json:"io_failures"`
	UnresolvedLinks int `json:"unresolved_links"`
	InvalidExamples int `json:"invalid_examples"`
	Symbols         int `json:"symbols"`
}

// Report is the result of one build.
type Report struct {
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration_ns"`
	Files       []FileResult      `json:"files"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Removed     []string          `json:"removed,omitempty"`
	Summary     Summary           `json:"summary"`
}

func (r *Report) summarize(symbols int) {
	s := Summary{Files: len(r.Files), Symbols: symbols}
	for _, f := range r.Files {
		switch f.Status {
		case StatusRendered:
			s.Rendered++
		case StatusUnchanged:
			s.Unchanged++
		case StatusFailed:
			s.Failed++
			switch {
			case errors.Is(f.err, diag.ErrMalformedMarkup):
				s.MalformedMarkup++
			case errors.Is(f.err, diag.ErrIOFailure):
				s.IOFailures++
			}
		}
	}
	s.UnresolvedLinks = diag.Count(r.Diagnostics, diag.ErrUnresolvedLink)
	s.InvalidExamples = diag.Count(r.Diagnostics, diag.ErrInvalidExample)
	r.Summary = s
}

// Failed returns the files that could not be processed, in path order.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			out = append(out, f)
		}
	}
	return out
}

// ExitCode is 1 if any file failed, or if strict and any link was left
// unresolved. Invalid examples never affect it.
func (r *Report) ExitCode(strict bool) int {
	if r.Summary.Failed > 0 {
		return 1
	}
	if strict && r.Summary.UnresolvedLinks > 0 {
		return 1
	}
	return 0
}

// Print writes failures and diagnostics, sorted by path then line, and a
// one-line summary.
func (r *Report) Print(w io.Writer) {
	for _, f := range r.Failed() {
		fmt.Fprintf(w, "error: %s\n", f.Error)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "%s\n", d)
	}
	s := r.Summary
	fmt.Fprintf(w, "%d files: %d rendered, %d unchanged, %d failed; %d symbols; %d unresolved links, %d invalid examples\n",
		s.Files, s.Rendered, s.Unchanged, s.Failed, s.Symbols, s.UnresolvedLinks, s.InvalidExamples)
}
