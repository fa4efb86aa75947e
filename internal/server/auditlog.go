package server

import (
	"net/http"
	"strconv"

	"github.com/hragd/hragd/internal/audit"
)

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	subject := r.URL.Query().Get("subject")
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := s.audit.Query(r.Context(), action, subject, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
