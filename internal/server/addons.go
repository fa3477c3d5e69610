package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insushim/iswaddon/internal/store"
)

const defaultListLimit = 20

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store == nil {
		s.writeError(w, r, http.StatusNotFound, errorResponse{Error: "build history disabled"})
		return false
	}
	return true
}

func (s *Server) handleListAddons(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: "limit must be between 1 and 100", Field: "limit"})
			return
		}
		limit = n
	}
	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "listing builds", Details: err.Error()})
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"addons": records})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	part, ok := store.ParsePart(chi.URLParam(r, "part"))
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: "part must be mcaddon, bp or rp", Field: "part"})
		return
	}
	data, rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"), part)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, errorResponse{Error: "addon not found", Identifier: chi.URLParam(r, "id")})
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "reading build", Details: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", part.Filename(rec.Metadata.Name)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("writing download", "err", err)
	}
}
