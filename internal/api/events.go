package api

import (
	"net/http"
	"strconv"
)

// handleListEvents returns recent audit events, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	store := s.factory.Audit()
	if store == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeInternalError(w, "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
