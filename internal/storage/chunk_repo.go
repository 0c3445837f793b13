package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks rag-pipeline/internal/storage ChunkStore

import (
	"context"
	"fmt"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// InsertBatch inserts chunks in order and sets their IDs.
	// Each chunk.VectorID must be set before calling this method.
	InsertBatch(ctx context.Context, chunks []*Chunk) error
	// ListByDocument returns all chunks of a document ordered by chunk index.
	ListByDocument(ctx context.Context, documentID int64) ([]*Chunk, error)
	// ListVectorIDsByDocument returns the vector store IDs of a document's chunks.
	ListVectorIDsByDocument(ctx context.Context, documentID int64) ([]string, error)
	// Count returns the total number of chunks.
	Count(ctx context.Context) (int, error)
	// TextLengths returns the character length of every chunk text.
	TextLengths(ctx context.Context) ([]int, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db DBTX
}

// NewChunkRepo creates a new ChunkRepo on top of a database or transaction.
func NewChunkRepo(db DBTX) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch inserts chunks in order and sets their IDs.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := r.db.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, chunk_index, text, start_offset, end_offset, vector_id) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, chunk := range chunks {
		if chunk.VectorID == "" {
			return fmt.Errorf("chunk %d has no vector id", chunk.Index)
		}
		res, err := stmt.ExecContext(ctx,
			chunk.DocumentID, chunk.Index, chunk.Text, chunk.StartOffset, chunk.EndOffset, chunk.VectorID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read chunk id: %w", err)
		}
		chunk.ID = id
	}

	return nil
}

// ListByDocument returns all chunks of a document ordered by chunk index.
// Returns an empty slice if the document has no chunks (not an error).
func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, text, start_offset, end_offset, vector_id
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.StartOffset, &c.EndOffset, &c.VectorID); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// ListVectorIDsByDocument returns the vector store IDs of a document's chunks, ordered by chunk index.
// Used to remove a document's vectors before its rows are deleted.
func (r *ChunkRepo) ListVectorIDsByDocument(ctx context.Context, documentID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT vector_id FROM chunks WHERE document_id = ? ORDER BY chunk_index",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vector ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// Count returns the total number of chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// TextLengths returns the character length of every chunk text.
func (r *ChunkRepo) TextLengths(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT length(text) FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk lengths: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var lengths []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan chunk length: %w", err)
		}
		lengths = append(lengths, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lengths, nil
}
