// Package loader discovers documentation sources under an input directory
// and reads them into doctree.Source values.
package loader

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
	"github.com/dgallion1/podsite/internal/parser"
)

// defaultKinds maps a top-level directory to the document kind assumed
// when the metadata directive does not declare one.
var defaultKinds = map[string]string{
	"type":     "Type",
	"language": "Language",
	"routine":  "Routine",
	"programs": "Programs",
	"native":   "Native",
}

// Loader reads sources from a directory tree.
type Loader struct {
	root string
	exts map[string]bool
	log  *slog.Logger
}

// New returns a Loader for root. exts lists the accepted file extensions
// (with the dot); when empty the parser's supported set is used.
func New(root string, exts []string, log *slog.Logger) *Loader {
	set := make(map[string]bool)
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	if len(set) == 0 {
		for e := range parser.SupportedExtensions {
			set[e] = true
		}
	}
	return &Loader{root: root, exts: set, log: log}
}

// Root returns the input directory.
func (l *Loader) Root() string { return l.root }

// Discover returns the slash-separated paths, relative to the root, of
// every source file, sorted. Hidden files and directories are skipped.
// Only a failure to read the root itself is returned as an error.
func (l *Loader) Discover(ctx context.Context) ([]string, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, &diag.IOError{Path: l.root, Op: "read", Err: err}
	}
	if !info.IsDir() {
		return nil, &diag.IOError{Path: l.root, Op: "read", Err: fs.ErrInvalid}
	}

	var paths []string
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			l.log.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == l.root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.exts[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads the source at rel, a path returned by Discover.
func (l *Loader) Load(rel string) (doctree.Source, error) {
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	raw, err := os.ReadFile(full)
	if err != nil {
		return doctree.Source{}, &diag.IOError{Path: rel, Op: "read", Err: err}
	}
	src := doctree.Source{Path: rel, Raw: raw, Meta: parser.ScanMeta(raw)}
	if src.Meta.Kind == "" {
		src.Meta.Kind = KindForPath(rel)
	}
	return src, nil
}

// KindForPath returns the default kind for a source from its top-level
// directory, or "" when the directory has no conventional kind.
func KindForPath(rel string) string {
	top, _, found := strings.Cut(rel, "/")
	if !found {
		return ""
	}
	return defaultKinds[strings.ToLower(top)]
}
