package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// handleListSymbols returns the whole symbol index of the current build.
func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	res := s.Current()
	if res == nil {
		jsonError(w, "no build available yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   res.Index.Len(),
		"symbols": res.Index.Map(),
	})
}

// handleGetSymbol returns every entry declaring one name.
func (s *Server) handleGetSymbol(w http.ResponseWriter, r *http.Request) {
	res := s.Current()
	if res == nil {
		jsonError(w, "no build available yet", http.StatusServiceUnavailable)
		return
	}
	name := chi.URLParam(r, "name")
	if u, err := url.PathUnescape(name); err == nil {
		name = u
	}
	entries := res.Index.Lookup(name)
	if len(entries) == 0 {
		jsonError(w, "unknown symbol: "+name, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"entries": entries,
	})
}
