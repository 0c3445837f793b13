package storage

import (
	"strings"
	"time"
)

// Document represents an ingested document.
type Document struct {
	ID        int64
	Title     string
	Source    string   // Empty when the caller gave no source
	Tags      []string // Stored comma-joined in documents.tags
	CreatedAt time.Time

	// ChunkCount is only populated by DocumentStore.List.
	ChunkCount int
}

// Chunk represents one window of a document's normalized text.
type Chunk struct {
	ID          int64
	DocumentID  int64
	Index       int    // Position within the document (starts at 0)
	Text        string
	StartOffset int    // Inclusive character offset into the normalized text
	EndOffset   int    // Exclusive character offset into the normalized text
	VectorID    string // UUID of the matching vector store record
}

// JoinTags encodes tags for the documents.tags column.
// Blank tags are dropped; an empty result is stored as NULL.
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.ReplaceAll(tag, ",", " "))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}

// SplitTags decodes the documents.tags column.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
