package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/parser"
	"github.com/dgallion1/podsite/internal/render"
	"github.com/dgallion1/podsite/internal/validate"
	"github.com/dgallion1/podsite/internal/xref"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res := s.Current()
	if res == nil {
		jsonError(w, "no build available yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, res.Report)
}

// handleRebuild runs a build synchronously and returns its summary.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.Rebuild(r.Context())
	if err != nil {
		jsonError(w, "rebuild failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": s.generation.Load(),
		"summary":    res.Report.Summary,
		"exit_code":  res.Report.ExitCode(s.cfg.Strict),
	})
}

// handlePreview renders one uploaded source against the current symbol
// index without writing anything to the output tree.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	p, err := parser.ForFile(filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tree, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		var me *diag.MarkupError
		if errors.As(err, &me) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":     me.Msg,
				"line":      me.Line,
				"directive": me.Directive,
			})
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ix := xref.NewIndex()
	if res := s.Current(); res != nil {
		ix = res.Index
	}
	ds := xref.Resolve(ix, tree)
	if s.cfg.ValidateExamples {
		ds = append(ds, validate.Examples(tree)...)
	}
	diag.Sort(ds)

	var buf bytes.Buffer
	if err := (render.HTML{}).Render(&buf, tree); err != nil {
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if ds == nil {
		ds = []diag.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":    filename,
		"title":       tree.Title,
		"html":        buf.String(),
		"diagnostics": ds,
	})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
