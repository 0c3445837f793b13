package handlers

import (
	"encoding/json"
	"net/http"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/rag"
)

// QueryHandler handles HTTP requests for RAG queries.
type QueryHandler struct {
	ragEngine rag.Engine
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(ragEngine rag.Engine) *QueryHandler {
	return &QueryHandler{
		ragEngine: ragEngine,
	}
}

// QueryRequest represents the HTTP request payload for RAG queries.
//
// swagger:model QueryRequest
type QueryRequest struct {
	// The question to answer
	Query string `json:"query" validate:"required"`
	// Number of chunks to retrieve. Values <= 0 use 5; values above 50 are capped at 50.
	TopK int `json:"top_k"`
	// Metadata filters; a list value matches any of its elements
	Filters map[string]any `json:"filters,omitempty"`
}

// RetrievedChunkResponse is one chunk used as context.
//
// swagger:model RetrievedChunkResponse
type RetrievedChunkResponse struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResponse represents the HTTP response payload for RAG queries.
//
// swagger:model QueryResponse
type QueryResponse struct {
	// The generated answer
	Answer string `json:"answer"`
	// Retrieved chunks, closest first
	Context []RetrievedChunkResponse `json:"context"`
}

// ServeHTTP handles HTTP requests for RAG queries.
//
// swagger:route POST /query query queryDocuments
//
// # Answer a question from the indexed documents
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with at most min(top_k, 50) retrieved chunks, closest first
//	  schema:
//	    "$ref": "#/definitions/QueryResponse"
//	'400':
//	  description: Missing query or malformed filters
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding provider, vector store or LLM unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		handleServiceError(ctx, w, err, "Invalid request")
		return
	}

	ragResp, err := h.ragEngine.Query(ctx, rag.QueryRequest{
		Query:   req.Query,
		TopK:    req.TopK,
		Filters: req.Filters,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process query")
		return
	}

	resp := QueryResponse{
		Answer:  ragResp.Answer,
		Context: make([]RetrievedChunkResponse, len(ragResp.Context)),
	}
	for i, c := range ragResp.Context {
		resp.Context[i] = RetrievedChunkResponse{
			Text:     c.Text,
			Score:    c.Score,
			Metadata: c.Metadata,
		}
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
