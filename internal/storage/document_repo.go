package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks rag-pipeline/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Insert inserts a document and sets its ID and CreatedAt.
	Insert(ctx context.Context, doc *Document) error
	// GetByID gets a document by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id int64) (*Document, error)
	// List returns all documents ordered by ID with ChunkCount populated.
	List(ctx context.Context) ([]*Document, error)
	// Delete removes a document and, through the foreign key, its chunks.
	// Returns ErrNotFound if no document has the ID.
	Delete(ctx context.Context, id int64) error
	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)
	// CountWithoutChunks returns the number of documents that own no chunks.
	CountWithoutChunks(ctx context.Context) (int, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db DBTX
}

// NewDocumentRepo creates a new DocumentRepo on top of a database or transaction.
func NewDocumentRepo(db DBTX) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Insert inserts a document and sets its ID and CreatedAt.
func (r *DocumentRepo) Insert(ctx context.Context, doc *Document) error {
	var source, tags sql.NullString
	if doc.Source != "" {
		source = sql.NullString{String: doc.Source, Valid: true}
	}
	if joined := JoinTags(doc.Tags); joined != "" {
		tags = sql.NullString{String: joined, Valid: true}
	}

	createdAt := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO documents (title, source, tags, created_at) VALUES (?, ?, ?, ?)",
		doc.Title, source, tags, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read document id: %w", err)
	}

	doc.ID = id
	doc.CreatedAt = createdAt
	return nil
}

// GetByID gets a document by ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*Document, error) {
	var (
		doc          Document
		source, tags sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, source, tags, created_at FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.Title, &source, &tags, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.Source = source.String
	doc.Tags = SplitTags(tags.String)
	return &doc, nil
}

// List returns all documents ordered by ID with ChunkCount populated.
func (r *DocumentRepo) List(ctx context.Context) ([]*Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.source, d.tags, d.created_at, COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := make([]*Document, 0)
	for rows.Next() {
		var (
			doc          Document
			source, tags sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &source, &tags, &doc.CreatedAt, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Source = source.String
		doc.Tags = SplitTags(tags.String)
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Delete removes a document and, through the foreign key, its chunks.
func (r *DocumentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of documents.
func (r *DocumentRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// CountWithoutChunks returns the number of documents that own no chunks.
func (r *DocumentRepo) CountWithoutChunks(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents
		 WHERE id NOT IN (SELECT DISTINCT document_id FROM chunks)`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents without chunks: %w", err)
	}
	return count, nil
}
