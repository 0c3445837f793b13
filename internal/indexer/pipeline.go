package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/storage"
	"rag-pipeline/internal/vectorstore"
)

var (
	// ErrMissingTitle is returned when a document has no title.
	ErrMissingTitle = errors.New("title is required")
	// ErrEmptyText is returned when a document has no text after whitespace normalization.
	ErrEmptyText = errors.New("no text provided")
	// ErrEmbeddingFailed wraps failures of the embedding provider.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrIndexFailed wraps failures of the vector store.
	ErrIndexFailed = errors.New("vector indexing failed")
)

// cleanupTimeout bounds vector store calls that run after the request context is done.
const cleanupTimeout = 10 * time.Second

// Pipeline stores documents in SQLite and indexes their chunks in the vector store.
type Pipeline struct {
	db             *sql.DB
	embedder       llm.Embedder
	vectorStore    vectorstore.VectorStore
	collection     string
	chunker        *Chunker
	embeddingModel string
}

// NewPipeline creates a new ingestion pipeline.
// embeddingModel only identifies the index build in Stats.
func NewPipeline(
	db *sql.DB,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	chunker *Chunker,
	embeddingModel string,
) *Pipeline {
	return &Pipeline{
		db:             db,
		embedder:       embedder,
		vectorStore:    vectorStore,
		collection:     collection,
		chunker:        chunker,
		embeddingModel: embeddingModel,
	}
}

// Ingest normalizes and chunks a document, stores it with its chunks, embeds the
// chunks and indexes them. The relational rows are committed only after the
// vectors are indexed; nothing is stored when any step fails.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}

	text := NormalizeWhitespace(req.Text)
	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	doc := &storage.Document{
		Title:  title,
		Source: strings.TrimSpace(req.Source),
		Tags:   storage.SplitTags(storage.JoinTags(req.Tags)),
	}

	var indexedIDs []string
	err := storage.Transact(ctx, p.db, func(tx *sql.Tx) error {
		if err := storage.NewDocumentRepo(tx).Insert(ctx, doc); err != nil {
			return err
		}

		rows := make([]*storage.Chunk, len(chunks))
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			rows[i] = &storage.Chunk{
				DocumentID:  doc.ID,
				Index:       c.Index,
				Text:        c.Text,
				StartOffset: c.StartOffset,
				EndOffset:   c.EndOffset,
				VectorID:    uuid.New().String(),
			}
			texts[i] = c.Text
		}
		if err := storage.NewChunkRepo(tx).InsertBatch(ctx, rows); err != nil {
			return err
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		if len(embeddings) != len(rows) {
			return fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(rows), len(embeddings))
		}

		points := make([]vectorstore.Point, len(rows))
		for i, row := range rows {
			points[i] = vectorstore.Point{
				ID:   row.VectorID,
				Vec:  embeddings[i],
				Text: row.Text,
				Meta: map[string]any{
					vectorstore.MetaDocumentID: doc.ID,
					vectorstore.MetaChunkID:    row.ID,
					vectorstore.MetaIndex:      row.Index,
					vectorstore.MetaTitle:      doc.Title,
					vectorstore.MetaTags:       doc.Tags,
				},
			}
		}
		if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
			return fmt.Errorf("%w: %w", ErrIndexFailed, err)
		}

		indexedIDs = make([]string, len(rows))
		for i, row := range rows {
			indexedIDs[i] = row.VectorID
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrCommitFailed) && len(indexedIDs) > 0 {
			// A failed commit is often a cancelled request; the cleanup must still run.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			delErr := p.vectorStore.Delete(cleanupCtx, p.collection, indexedIDs)
			cancel()
			if delErr != nil {
				logger.ErrorContext(ctx, "failed to remove vectors of uncommitted document",
					"count", len(indexedIDs), "error", delErr)
			}
		}
		logger.ErrorContext(ctx, "document ingestion failed", "title", title, "error", err)
		return nil, fmt.Errorf("failed to ingest document: %w", err)
	}

	logger.InfoContext(ctx, "document ingested",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"chars", len([]rune(text)),
	)

	return &IngestResult{
		DocumentID: doc.ID,
		ChunkCount: len(chunks),
		CreatedAt:  doc.CreatedAt,
	}, nil
}

// DeleteDocument removes a document and its chunks, then their vectors.
// Returns storage.ErrNotFound if the document does not exist. When the rows are
// deleted but removing the vectors fails, the error wraps ErrIndexFailed.
func (p *Pipeline) DeleteDocument(ctx context.Context, id int64) error {
	logger := contextutil.LoggerFromContext(ctx)

	var vectorIDs []string
	err := storage.Transact(ctx, p.db, func(tx *sql.Tx) error {
		ids, err := storage.NewChunkRepo(tx).ListVectorIDsByDocument(ctx, id)
		if err != nil {
			return err
		}
		if err := storage.NewDocumentRepo(tx).Delete(ctx, id); err != nil {
			return err
		}
		vectorIDs = ids
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}

	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := p.vectorStore.Delete(deleteCtx, p.collection, vectorIDs); err != nil {
		logger.ErrorContext(ctx, "failed to remove vectors of deleted document",
			"document_id", id, "count", len(vectorIDs), "error", err)
		return fmt.Errorf("%w: document %d: %w", ErrIndexFailed, id, err)
	}

	logger.InfoContext(ctx, "document deleted", "document_id", id, "vectors", len(vectorIDs))
	return nil
}
