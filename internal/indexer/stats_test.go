package indexer

import (
	"context"
	"testing"

	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/storage"
	"rag-pipeline/internal/vectorstore"
)

func TestPipeline_Stats(t *testing.T) {
	db := newTestDB(t)
	store, err := vectorstore.NewLocalStore("")
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	pipeline := NewPipeline(db, llm.NewHashEmbedder(8), store, "docs", newTestChunker(t, 10, 2), "hash")
	ctx := context.Background()

	stats, err := pipeline.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 || stats.DocumentsWithoutChunks != 0 {
		t.Errorf("Stats() on empty db = %+v", stats)
	}
	if stats.ChunkerVersion != ChunkerVersion {
		t.Errorf("ChunkerVersion = %s, want %s", stats.ChunkerVersion, ChunkerVersion)
	}
	if len(stats.IndexVersion) != 16 {
		t.Errorf("IndexVersion = %q, want 16 hex chars", stats.IndexVersion)
	}

	if _, err := pipeline.Ingest(ctx, IngestRequest{Title: "a", Text: "the quick brown fox jumps"}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := storage.NewDocumentRepo(db).Insert(ctx, &storage.Document{Title: "empty"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	stats, err = pipeline.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.DocumentsWithoutChunks != 1 {
		t.Errorf("DocumentsWithoutChunks = %d, want 1", stats.DocumentsWithoutChunks)
	}
	if stats.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", stats.Chunks)
	}
	want := ChunkLengthStats{Min: 9, Max: 10, Mean: 9.67, P95: 10}
	if stats.ChunkLength != want {
		t.Errorf("ChunkLength = %+v, want %+v", stats.ChunkLength, want)
	}
	if stats.ChunkSize != 10 || stats.ChunkOverlap != 2 {
		t.Errorf("chunk params = %d/%d, want 10/2", stats.ChunkSize, stats.ChunkOverlap)
	}
}

func TestPipeline_IndexVersion(t *testing.T) {
	db := newTestDB(t)
	base := NewPipeline(db, llm.NewHashEmbedder(8), nil, "docs", newTestChunker(t, 10, 2), "hash")
	same := NewPipeline(db, llm.NewHashEmbedder(8), nil, "other", newTestChunker(t, 10, 2), "hash")
	otherParams := NewPipeline(db, llm.NewHashEmbedder(8), nil, "docs", newTestChunker(t, 10, 3), "hash")
	otherModel := NewPipeline(db, llm.NewHashEmbedder(16), nil, "docs", newTestChunker(t, 10, 2), "hash")

	if base.IndexVersion() != same.IndexVersion() {
		t.Error("IndexVersion() should not depend on the collection")
	}
	if base.IndexVersion() == otherParams.IndexVersion() {
		t.Error("IndexVersion() should change with chunk parameters")
	}
	if base.IndexVersion() == otherModel.IndexVersion() {
		t.Error("IndexVersion() should change with embedding dimension")
	}
}

func TestComputeLengthStats(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
		want    ChunkLengthStats
	}{
		{
			name:    "empty",
			lengths: nil,
			want:    ChunkLengthStats{},
		},
		{
			name:    "single value",
			lengths: []int{42},
			want:    ChunkLengthStats{Min: 42, Max: 42, Mean: 42, P95: 42},
		},
		{
			name:    "unsorted input",
			lengths: []int{30, 10, 20},
			want:    ChunkLengthStats{Min: 10, Max: 30, Mean: 20, P95: 30},
		},
		{
			name:    "twenty values",
			lengths: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			want:    ChunkLengthStats{Min: 1, Max: 20, Mean: 10.5, P95: 19},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeLengthStats(tt.lengths); got != tt.want {
				t.Errorf("computeLengthStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
