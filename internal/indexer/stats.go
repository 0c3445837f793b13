package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"rag-pipeline/internal/storage"
)

// ChunkerVersion identifies the chunking algorithm.
// Update this when chunking logic changes.
const ChunkerVersion = "v1.0"

// CorpusStats describes the stored documents and the index they were built into.
type CorpusStats struct {
	// Documents is the number of stored documents.
	Documents int `json:"documents"`
	// DocumentsWithoutChunks is the number of documents that own no chunks.
	DocumentsWithoutChunks int `json:"documents_without_chunks"`
	// Chunks is the number of stored chunks.
	Chunks int `json:"chunks"`
	// ChunkLength summarizes chunk lengths in characters.
	ChunkLength ChunkLengthStats `json:"chunk_length"`
	// ChunkSize and ChunkOverlap are the active chunker parameters.
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// EmbeddingModel names the embedding model.
	EmbeddingModel string `json:"embedding_model"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkLengthStats contains statistics about chunk lengths.
type ChunkLengthStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// Stats computes corpus statistics from the database.
func (p *Pipeline) Stats(ctx context.Context) (*CorpusStats, error) {
	docs := storage.NewDocumentRepo(p.db)
	chunks := storage.NewChunkRepo(p.db)

	stats := &CorpusStats{
		ChunkSize:      p.chunker.Size(),
		ChunkOverlap:   p.chunker.Overlap(),
		ChunkerVersion: ChunkerVersion,
		EmbeddingModel: p.embeddingModel,
		IndexVersion:   p.IndexVersion(),
	}

	var err error
	if stats.Documents, err = docs.Count(ctx); err != nil {
		return nil, err
	}
	if stats.DocumentsWithoutChunks, err = docs.CountWithoutChunks(ctx); err != nil {
		return nil, err
	}

	lengths, err := chunks.TextLengths(ctx)
	if err != nil {
		return nil, err
	}
	stats.Chunks = len(lengths)
	stats.ChunkLength = computeLengthStats(lengths)

	return stats, nil
}

// IndexVersion hashes the chunker version, embedding model and chunking parameters.
func (p *Pipeline) IndexVersion() string {
	input := fmt.Sprintf("%s|%s|dim=%d|size=%d|overlap=%d",
		ChunkerVersion, p.embeddingModel, p.embedder.Dimension(), p.chunker.Size(), p.chunker.Overlap())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeLengthStats computes min, max, mean, and p95 from chunk lengths.
func computeLengthStats(lengths []int) ChunkLengthStats {
	if len(lengths) == 0 {
		return ChunkLengthStats{}
	}

	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range sorted {
		sum += n
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkLengthStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
