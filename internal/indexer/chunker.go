package indexer

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the default window size in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
	DefaultChunkOverlap = 200
)

// ErrInvalidChunkParams is returned when chunk size or overlap are out of range.
var ErrInvalidChunkParams = errors.New("invalid chunk parameters")

// Chunker splits normalized text into fixed-size overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. size must be positive and overlap must satisfy 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkParams, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidChunkParams, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in characters.
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the number of characters shared by adjacent chunks.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// NormalizeWhitespace collapses every run of whitespace into a single space and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Chunk splits text into overlapping windows. Offsets count characters, not bytes.
// The last window always ends at the end of the text. Empty text yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return []Chunk{}
	}

	var chunks []Chunk
	start := 0
	for {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}
