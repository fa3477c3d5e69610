package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/insushim/iswaddon/internal/concept"
)

type conceptMetadata struct {
	GenerationTimeMs int64  `json:"generationTimeMs"`
	Model            string `json:"model"`
}

type ConceptResponse struct {
	Success          bool            `json:"success"`
	GenerationID     string          `json:"generationId"`
	RequestID        string          `json:"requestId"`
	ConceptType      concept.Type    `json:"conceptType"`
	Analysis         json.RawMessage `json:"analysis"`
	DetailedAnalysis json.RawMessage `json:"detailedAnalysis"`
	Metadata         conceptMetadata `json:"metadata"`
}

func (s *Server) handleConcept(w http.ResponseWriter, r *http.Request) {
	if s.expander == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errorResponse{
			Error:   "concept analysis unavailable",
			Details: "no generation API key is configured",
		})
		return
	}
	var req concept.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Details: err.Error()})
		return
	}

	start := time.Now()
	res, err := s.expander.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, concept.ErrInvalidRequest) {
			s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: err.Error(), Field: "concept"})
			return
		}
		s.writeError(w, r, http.StatusBadGateway, errorResponse{Error: "AI generation failed", Details: err.Error()})
		return
	}
	elapsed := time.Since(start)
	s.logger.Info("concept analyzed", "type", res.Type, "detailed", res.Detailed != nil, "took", elapsed.Round(time.Millisecond))

	detailed := res.Detailed
	if detailed == nil {
		detailed = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, &ConceptResponse{
		Success:          true,
		GenerationID:     s.newID(),
		RequestID:        middleware.GetReqID(r.Context()),
		ConceptType:      res.Type,
		Analysis:         res.Analysis,
		DetailedAnalysis: detailed,
		Metadata: conceptMetadata{
			GenerationTimeMs: elapsed.Milliseconds(),
			Model:            s.expander.Model(),
		},
	})
}
