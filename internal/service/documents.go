package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingester.go -package=mocks rag-pipeline/internal/service Ingester
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks rag-pipeline/internal/service DocumentService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/indexer"
	"rag-pipeline/internal/metrics"
	"rag-pipeline/internal/storage"
)

// Ingester stores, indexes and removes documents.
// This interface is defined from the service layer's perspective (consumer-first).
type Ingester interface {
	// Ingest chunks, embeds and indexes a document.
	Ingest(ctx context.Context, req indexer.IngestRequest) (*indexer.IngestResult, error)
	// DeleteDocument removes a document, its chunks and their vectors.
	DeleteDocument(ctx context.Context, id int64) error
	// Stats computes corpus statistics.
	Stats(ctx context.Context) (*indexer.CorpusStats, error)
}

// CreateDocumentRequest represents a document to ingest.
type CreateDocumentRequest struct {
	Title  string
	Source string
	Tags   []string
	Text   string
}

// CreateDocumentResult is returned after a document was ingested.
type CreateDocumentResult struct {
	DocumentID int64
	ChunkCount int
}

// DocumentSummary describes a stored document without its chunks.
type DocumentSummary struct {
	ID         int64
	Title      string
	Source     string
	Tags       []string
	ChunkCount int
	CreatedAt  time.Time
}

// ChunkSummary describes one stored chunk.
type ChunkSummary struct {
	ID          int64
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
}

// DocumentDetail describes a stored document with its chunks in index order.
type DocumentDetail struct {
	ID        int64
	Title     string
	Source    string
	Tags      []string
	CreatedAt time.Time
	Chunks    []ChunkSummary
}

// DocumentService manages the document corpus.
type DocumentService interface {
	// Create ingests a document.
	Create(ctx context.Context, req CreateDocumentRequest) (*CreateDocumentResult, error)
	// List returns all documents with their chunk counts.
	List(ctx context.Context) ([]DocumentSummary, error)
	// Get returns a document with its chunks. Returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id int64) (*DocumentDetail, error)
	// Delete removes a document. Returns ErrNotFound for an unknown id.
	Delete(ctx context.Context, id int64) error
	// Stats returns corpus statistics.
	Stats(ctx context.Context) (*indexer.CorpusStats, error)
}

// documentService implements DocumentService.
type documentService struct {
	ingester  Ingester
	documents storage.DocumentStore
	chunks    storage.ChunkStore
	metrics   *metrics.Metrics
}

// NewDocumentService creates a new DocumentService. m may be nil.
func NewDocumentService(ingester Ingester, documents storage.DocumentStore, chunks storage.ChunkStore, m *metrics.Metrics) DocumentService {
	return &documentService{
		ingester:  ingester,
		documents: documents,
		chunks:    chunks,
		metrics:   m,
	}
}

// Create validates and ingests a document.
func (s *documentService) Create(ctx context.Context, req CreateDocumentRequest) (*CreateDocumentResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Title) == "" {
		logger.WarnContext(ctx, "document without title")
		return nil, &ValidationError{Field: "title", Message: "Title is required"}
	}
	if strings.TrimSpace(req.Text) == "" {
		logger.WarnContext(ctx, "document without text", "title", req.Title)
		return nil, &ValidationError{Field: "text", Message: "No text provided"}
	}

	result, err := s.ingester.Ingest(ctx, indexer.IngestRequest{
		Title:  req.Title,
		Source: req.Source,
		Tags:   req.Tags,
		Text:   req.Text,
	})
	if err != nil {
		s.metrics.ObserveIngest(0, err)
		logger.ErrorContext(ctx, "failed to ingest document", "title", req.Title, "error", err)
		return nil, mapIngestError(err)
	}
	s.metrics.ObserveIngest(result.ChunkCount, nil)

	logger.InfoContext(ctx, "document ingested",
		"document_id", result.DocumentID,
		"chunk_count", result.ChunkCount,
	)
	return &CreateDocumentResult{
		DocumentID: result.DocumentID,
		ChunkCount: result.ChunkCount,
	}, nil
}

// List returns all documents.
func (s *documentService) List(ctx context.Context) ([]DocumentSummary, error) {
	docs, err := s.documents.List(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to list documents")
	}

	summaries := make([]DocumentSummary, len(docs))
	for i, doc := range docs {
		summaries[i] = DocumentSummary{
			ID:         doc.ID,
			Title:      doc.Title,
			Source:     doc.Source,
			Tags:       tagsOrEmpty(doc.Tags),
			ChunkCount: doc.ChunkCount,
			CreatedAt:  doc.CreatedAt,
		}
	}
	return summaries, nil
}

// Get returns a document and its chunks.
func (s *documentService) Get(ctx context.Context, id int64) (*DocumentDetail, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: document %d", ErrNotFound, id)
		}
		return nil, WrapError(err, "failed to get document")
	}

	chunks, err := s.chunks.ListByDocument(ctx, id)
	if err != nil {
		return nil, WrapError(err, "failed to list chunks")
	}

	detail := &DocumentDetail{
		ID:        doc.ID,
		Title:     doc.Title,
		Source:    doc.Source,
		Tags:      tagsOrEmpty(doc.Tags),
		CreatedAt: doc.CreatedAt,
		Chunks:    make([]ChunkSummary, len(chunks)),
	}
	for i, c := range chunks {
		detail.Chunks[i] = ChunkSummary{
			ID:          c.ID,
			Index:       c.Index,
			Text:        c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
		}
	}
	return detail, nil
}

// Delete removes a document with its chunks and vectors.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := s.ingester.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: document %d", ErrNotFound, id)
		}
		logger.ErrorContext(ctx, "failed to delete document", "document_id", id, "error", err)
		if errors.Is(err, indexer.ErrIndexFailed) {
			return fmt.Errorf("%w: %w", ErrExternalService, err)
		}
		return WrapError(err, "failed to delete document")
	}
	s.metrics.ObserveDelete()

	logger.InfoContext(ctx, "document deleted", "document_id", id)
	return nil
}

// Stats returns corpus statistics.
func (s *documentService) Stats(ctx context.Context) (*indexer.CorpusStats, error) {
	stats, err := s.ingester.Stats(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to compute stats")
	}
	return stats, nil
}

// mapIngestError converts pipeline errors into service errors.
func mapIngestError(err error) error {
	switch {
	case errors.Is(err, indexer.ErrMissingTitle):
		return &ValidationError{Field: "title", Message: "Title is required"}
	case errors.Is(err, indexer.ErrEmptyText):
		return &ValidationError{Field: "text", Message: "No text provided"}
	case errors.Is(err, indexer.ErrEmbeddingFailed), errors.Is(err, indexer.ErrIndexFailed):
		return fmt.Errorf("%w: %w", ErrExternalService, err)
	default:
		return WrapError(err, "failed to create document")
	}
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
