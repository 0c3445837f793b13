package handlers

import (
	"net/http"

	"rag-pipeline/internal/service"
)

// StatsHandler serves corpus statistics.
type StatsHandler struct {
	documents service.DocumentService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(documents service.DocumentService) *StatsHandler {
	return &StatsHandler{documents: documents}
}

// ServeHTTP handles GET /stats.
//
// swagger:route GET /stats stats corpusStats
//
// # Corpus statistics
//
// Document and chunk counts, chunk length distribution and the index version.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Corpus statistics
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.documents.Stats(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to compute stats")
		return
	}

	writeJSON(ctx, w, http.StatusOK, stats)
}
