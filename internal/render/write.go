package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/xref"
)

// SymbolsFile is the name of the aggregate symbol index in the output
// directory.
const SymbolsFile = "symbols.json"

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// Writer stores artifacts under an output directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteFile stores data at the slash-separated path rel. It reports
// whether the file was written: an existing file with the same content
// hash is left untouched. The file is replaced atomically.
func (w *Writer) WriteFile(rel string, data []byte) (bool, error) {
	full := filepath.Join(w.dir, filepath.FromSlash(rel))
	if old, err := os.ReadFile(full); err == nil && ContentHashHex(old) == ContentHashHex(data) {
		return false, nil
	}

	fail := func(err error) (bool, error) {
		return false, &diag.IOError{Path: rel, Op: "write", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".podsite-*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fail(err)
	}
	return true, nil
}

// SymbolsJSON serialises the index as {name: [{source, anchor, kind}]}.
// Keys are sorted by encoding/json and entries are kept sorted by the
// index, so the output is deterministic.
func SymbolsJSON(ix *xref.Index) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ix.Map()); err != nil {
		return nil, fmt.Errorf("encoding symbol index: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteSymbols stores the symbol index as SymbolsFile.
func (w *Writer) WriteSymbols(ix *xref.Index) (bool, error) {
	data, err := SymbolsJSON(ix)
	if err != nil {
		return false, err
	}
	return w.WriteFile(SymbolsFile, data)
}

// Prune removes files with extension ext that are not in keep, which holds
// slash-separated paths relative to the output directory. Hidden entries
// are left alone. It returns the removed paths.
func (w *Writer) Prune(keep map[string]bool, ext string) ([]string, error) {
	var removed []string
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != w.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if keep[rel] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return &diag.IOError{Path: rel, Op: "remove", Err: err}
		}
		removed = append(removed, rel)
		return nil
	})
	return removed, err
}
