package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks rag-pipeline/internal/rag Engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/metrics"
	"rag-pipeline/internal/service"
	"rag-pipeline/internal/vectorstore"
)

const (
	// DefaultTopK is used when a request does not ask for a positive number of chunks.
	DefaultTopK = 5
	// MaxTopK caps the number of chunks retrieved per query.
	MaxTopK = 50
)

// Engine provides RAG (Retrieval-Augmented Generation) functionality.
type Engine interface {
	// Query retrieves the chunks nearest to the query and generates an answer from them.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	generator   llm.Generator
	metrics     *metrics.Metrics
}

// NewEngine creates a new RAG engine. m may be nil.
func NewEngine(
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	generator llm.Generator,
	m *metrics.Metrics,
) Engine {
	return &ragEngine{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		generator:   generator,
		metrics:     m,
	}
}

// Query answers a query using RAG.
func (e *ragEngine) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	start := time.Now()
	resp, err := e.query(ctx, req)

	results := 0
	if resp != nil {
		results = len(resp.Context)
	}
	e.metrics.ObserveQuery(results, time.Since(start), err)

	return resp, err
}

func (e *ragEngine) query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Query) == "" {
		return nil, &service.ValidationError{Field: "query", Message: "Query is required"}
	}

	if err := vectorstore.ValidateFilters(req.Filters); err != nil {
		var filterErr *vectorstore.FilterError
		if errors.As(err, &filterErr) {
			return nil, &service.ValidationError{
				Field:   "filters",
				Message: fmt.Sprintf("Invalid filter for %s: %s", filterErr.Key, filterErr.Reason),
			}
		}
		return nil, &service.ValidationError{Field: "filters", Message: "Invalid filters"}
	}

	k := req.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}

	logger.InfoContext(ctx, "RAG query started", "top_k", k, "filters", req.Filters)

	embeddings, err := e.embedder.EmbedTexts(ctx, []string{req.Query})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: failed to embed query: %w", service.ErrExternalService, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query embedding, got %d", service.ErrExternalService, len(embeddings))
	}

	results, err := e.vectorStore.Search(ctx, e.collection, embeddings[0], k, req.Filters)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return nil, fmt.Errorf("%w: failed to search vector store: %w", service.ErrExternalService, err)
	}

	chunks := make([]RetrievedChunk, len(results))
	texts := make([]string, len(results))
	for i, r := range results {
		meta := r.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		chunks[i] = RetrievedChunk{
			Text:     r.Text,
			Score:    float64(r.Score),
			Metadata: meta,
		}
		texts[i] = r.Text
	}

	logger.DebugContext(ctx, "retrieved context", "chunks", len(chunks))

	answer, err := e.generator.GenerateAnswer(ctx, req.Query, texts)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		return nil, fmt.Errorf("%w: failed to generate answer: %w", service.ErrExternalService, err)
	}

	logger.InfoContext(ctx, "RAG query completed", "chunks", len(chunks), "answer_len", len(answer))

	return &QueryResponse{
		Answer:  answer,
		Context: chunks,
	}, nil
}
