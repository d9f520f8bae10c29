package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fabworks/cell-core/internal/factory"
)

// handleListTools returns the tool metadata map.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.factory.Tools()})
}

// handleSetTool stores tool metadata under the path name.
func (s *Server) handleSetTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var t factory.Tool
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.factory.SetTool(name, t); err != nil {
		writeInternalError(w, "tool stored but persistence failed: "+err.Error())
		return
	}
	t.Name = name
	writeJSON(w, http.StatusOK, t)
}

// handleRemoveTool deletes tool metadata.
func (s *Server) handleRemoveTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	existed, err := s.factory.RemoveTool(name)
	if err != nil {
		writeInternalError(w, "persistence failed: "+err.Error())
		return
	}
	if !existed {
		writeNotFound(w, "tool "+name+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": name})
}
