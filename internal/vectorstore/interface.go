package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks rag-pipeline/internal/vectorstore VectorStore

import "context"

// Metadata keys written for every chunk vector.
const (
	MetaDocumentID = "document_id"
	MetaChunkID    = "chunk_id"
	MetaIndex      = "index"
	MetaTitle      = "title"
	MetaTags       = "tags"
)

// Point represents a vector point with its source text and metadata.
type Point struct {
	ID   string
	Vec  []float32
	Text string
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Score is the raw distance to the query; lower is closer.
type SearchResult struct {
	ID    string
	Text  string
	Score float32
	Meta  map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to k points nearest to query, closest first.
	// Only points whose metadata satisfies filters are considered.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists reports whether the collection has been created.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// Store is a VectorStore that owns its connection and collection setup.
type Store interface {
	VectorStore

	// EnsureCollection creates the collection if needed and validates its vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Close releases the underlying resources.
	Close() error
}
