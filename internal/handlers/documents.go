package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/extract"
	"rag-pipeline/internal/service"
)

// maxMemoryMultipart is the part of a multipart body kept in memory; the rest spills to disk.
const maxMemoryMultipart = 10 << 20

// DocumentsHandler handles HTTP requests for the document corpus.
type DocumentsHandler struct {
	documents      service.DocumentService
	extractor      *extract.Extractor
	maxUploadBytes int64
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(documents service.DocumentService, extractor *extract.Extractor, maxUploadBytes int64) *DocumentsHandler {
	return &DocumentsHandler{
		documents:      documents,
		extractor:      extractor,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateDocumentRequest represents the JSON payload for creating a document.
//
// swagger:model CreateDocumentRequest
type CreateDocumentRequest struct {
	// Title of the document
	Title string `json:"title" validate:"required"`
	// Optional origin of the document (URL, file name)
	Source string `json:"source,omitempty"`
	// Optional tags usable as query filters
	Tags []string `json:"tags,omitempty"`
	// Raw text of the document
	Text string `json:"text"`
}

// CreateDocumentResponse represents the response after a document was ingested.
//
// swagger:model CreateDocumentResponse
type CreateDocumentResponse struct {
	DocumentID int64 `json:"document_id"`
	ChunkCount int   `json:"chunk_count"`
}

// DocumentSummaryResponse describes a document in the list endpoint.
//
// swagger:model DocumentSummaryResponse
type DocumentSummaryResponse struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Source     *string   `json:"source"`
	Tags       []string  `json:"tags"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkResponse describes one chunk of a document.
//
// swagger:model ChunkResponse
type ChunkResponse struct {
	ID          int64  `json:"id"`
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// DocumentDetailResponse describes a document with its chunks.
//
// swagger:model DocumentDetailResponse
type DocumentDetailResponse struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Source    *string         `json:"source"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"created_at"`
	Chunks    []ChunkResponse `json:"chunks"`
}

// Create handles POST /documents.
//
// Accepts either a JSON body or multipart/form-data with the fields title,
// source, tags (comma separated or repeated) and either text or a file part.
// Files may be text/plain, text/markdown or application/pdf.
//
// swagger:route POST /documents documents createDocument
//
// # Ingest a document
//
// ---
// consumes:
// - application/json
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'201':
//	  description: Document stored and indexed
//	  schema:
//	    "$ref": "#/definitions/CreateDocumentResponse"
//	'400':
//	  description: Missing title, missing text or unsupported file type
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'413':
//	  description: Upload larger than the configured limit
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding provider or vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var (
		req CreateDocumentRequest
		err error
	)
	switch extract.NormalizeContentType(r.Header.Get("Content-Type")) {
	case "multipart/form-data":
		req, err = h.parseMultipart(r)
	case "application/json", "":
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			if !isTooLarge(decodeErr) {
				logger.WarnContext(ctx, "invalid request body", "error", decodeErr)
				writeError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			err = decodeErr
		} else {
			err = validateRequest(req)
		}
	default:
		logger.WarnContext(ctx, "unsupported request content type", "content_type", r.Header.Get("Content-Type"))
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported content type")
		return
	}
	if err != nil {
		if isTooLarge(err) {
			logger.WarnContext(ctx, "upload too large", "limit", h.maxUploadBytes)
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		handleServiceError(ctx, w, err, "Failed to read upload")
		return
	}

	result, err := h.documents.Create(ctx, service.CreateDocumentRequest{
		Title:  req.Title,
		Source: req.Source,
		Tags:   req.Tags,
		Text:   req.Text,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to create document")
		return
	}

	writeJSON(ctx, w, http.StatusCreated, CreateDocumentResponse{
		DocumentID: result.DocumentID,
		ChunkCount: result.ChunkCount,
	})
}

// parseMultipart reads the form fields and, when present, converts the file part to text.
// The file replaces any text field.
func (h *DocumentsHandler) parseMultipart(r *http.Request) (CreateDocumentRequest, error) {
	var req CreateDocumentRequest

	if err := r.ParseMultipartForm(maxMemoryMultipart); err != nil {
		if isTooLarge(err) {
			return req, err
		}
		return req, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}

	req.Title = r.FormValue("title")
	req.Source = r.FormValue("source")
	req.Text = r.FormValue("text")
	for _, raw := range r.MultipartForm.Value["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				req.Tags = append(req.Tags, tag)
			}
		}
	}

	if err := validateRequest(req); err != nil {
		return req, err
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	defer func() {
		_ = file.Close()
	}()

	contentType := header.Header.Get("Content-Type")
	if !extract.Supported(contentType) {
		return req, fmt.Errorf("%w: %q", extract.ErrUnsupportedType, contentType)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	text, err := h.extractor.Extract(contentType, data)
	if err != nil {
		return req, err
	}
	req.Text = text

	contextutil.LoggerFromContext(r.Context()).InfoContext(r.Context(), "file extracted",
		"filename", header.Filename,
		"content_type", contentType,
		"bytes", len(data),
		"chars", len([]rune(text)),
	)
	return req, nil
}

// List handles GET /documents.
//
// swagger:route GET /documents documents listDocuments
//
// # List documents
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: All documents with their chunk counts
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.documents.List(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list documents")
		return
	}

	resp := make([]DocumentSummaryResponse, len(docs))
	for i, doc := range docs {
		resp[i] = DocumentSummaryResponse{
			ID:         doc.ID,
			Title:      doc.Title,
			Source:     optionalString(doc.Source),
			Tags:       doc.Tags,
			ChunkCount: doc.ChunkCount,
			CreatedAt:  doc.CreatedAt,
		}
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /documents/{id}.
//
// swagger:route GET /documents/{id} documents getDocument
//
// # Get a document with its chunks
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: The document and its chunks in index order
//	  schema:
//	    "$ref": "#/definitions/DocumentDetailResponse"
//	'404':
//	  description: Document not found
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.Get(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to get document")
		return
	}

	resp := DocumentDetailResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		Source:    optionalString(doc.Source),
		Tags:      doc.Tags,
		CreatedAt: doc.CreatedAt,
		Chunks:    make([]ChunkResponse, len(doc.Chunks)),
	}
	for i, c := range doc.Chunks {
		resp.Chunks[i] = ChunkResponse{
			ID:          c.ID,
			Index:       c.Index,
			Text:        c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
		}
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// Delete handles DELETE /documents/{id}.
//
// swagger:route DELETE /documents/{id} documents deleteDocument
//
// # Delete a document, its chunks and its vectors
//
// ---
// responses:
//
//	'204':
//	  description: Document deleted
//	'404':
//	  description: Document not found
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	if err := h.documents.Delete(ctx, id); err != nil {
		handleServiceError(ctx, w, err, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseDocumentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		contextutil.LoggerFromContext(r.Context()).WarnContext(r.Context(), "invalid document id", "id", raw)
		writeError(w, http.StatusBadRequest, "Invalid document id")
		return 0, false
	}
	return id, true
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
