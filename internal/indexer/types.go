package indexer

import "time"

// Chunk is one window of a normalized document.
type Chunk struct {
	Index       int    // Position within the document (starts at 0)
	Text        string // Window text
	StartOffset int    // Inclusive character offset into the normalized text
	EndOffset   int    // Exclusive character offset into the normalized text
}

// IngestRequest is the input of Pipeline.Ingest.
type IngestRequest struct {
	Title  string
	Source string
	Tags   []string
	Text   string
}

// IngestResult is returned after a document has been stored and indexed.
type IngestResult struct {
	DocumentID int64
	ChunkCount int
	CreatedAt  time.Time
}
