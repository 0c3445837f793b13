package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoints() []Point {
	return []Point{
		{ID: "a", Vec: []float32{0, 0}, Text: "origin", Meta: map[string]any{MetaDocumentID: int64(1), MetaTags: []string{"x"}}},
		{ID: "b", Vec: []float32{1, 0}, Text: "near", Meta: map[string]any{MetaDocumentID: int64(1), MetaTags: []string{"y"}}},
		{ID: "c", Vec: []float32{3, 4}, Text: "far", Meta: map[string]any{MetaDocumentID: int64(2), MetaTags: []string{"x", "y"}}},
	}
}

func TestLocalStore_Search(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore("")
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "docs", 2))
	require.NoError(t, store.Upsert(ctx, "docs", testPoints()))

	tests := []struct {
		name       string
		query      []float32
		k          int
		filters    map[string]any
		wantIDs    []string
		wantScores []float32
	}{
		{
			name:       "ranked by squared distance",
			query:      []float32{0, 0},
			k:          3,
			wantIDs:    []string{"a", "b", "c"},
			wantScores: []float32{0, 1, 25},
		},
		{
			name:    "truncated to k",
			query:   []float32{3, 4},
			k:       1,
			wantIDs: []string{"c"},
		},
		{
			name:    "k larger than collection",
			query:   []float32{0, 0},
			k:       10,
			wantIDs: []string{"a", "b", "c"},
		},
		{
			name:    "document filter",
			query:   []float32{0, 0},
			k:       5,
			filters: map[string]any{MetaDocumentID: float64(2)},
			wantIDs: []string{"c"},
		},
		{
			name:    "tag filter",
			query:   []float32{0, 0},
			k:       5,
			filters: map[string]any{MetaTags: "y"},
			wantIDs: []string{"b", "c"},
		},
		{
			name:    "no match",
			query:   []float32{0, 0},
			k:       5,
			filters: map[string]any{MetaTags: "z"},
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Search(ctx, "docs", tt.query, tt.k, tt.filters)
			require.NoError(t, err)

			ids := make([]string, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)

			if tt.wantScores != nil {
				for i, r := range results {
					assert.InDelta(t, tt.wantScores[i], r.Score, 1e-6)
				}
			}
		})
	}
}

func TestLocalStore_SearchRejectsInvalidFilters(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "docs", testPoints()))

	for _, filters := range []map[string]any{
		{MetaTags: []any{}},
		{MetaDocumentID: map[string]any{"$eq": float64(1)}},
	} {
		_, err := store.Search(ctx, "docs", []float32{0, 0}, 5, filters)
		var filterErr *FilterError
		assert.ErrorAs(t, err, &filterErr, "filters %v", filters)
	}
}

func TestLocalStore_SearchReturnsTextAndMeta(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "docs", testPoints()))

	results, err := store.Search(ctx, "docs", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].Text)
	assert.Equal(t, int64(1), results[0].Meta[MetaDocumentID])
	assert.Equal(t, []any{"y"}, results[0].Meta[MetaTags])

	// results must not alias stored metadata
	results[0].Meta[MetaTitle] = "changed"
	again, err := store.Search(ctx, "docs", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.NotContains(t, again[0].Meta, MetaTitle)
}

func TestLocalStore_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore("")
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "docs", 2))

	_, err = store.Search(ctx, "docs", []float32{0, 0}, 0, nil)
	assert.Error(t, err, "k=0 should fail")

	err = store.Upsert(ctx, "docs", []Point{{ID: "x", Vec: []float32{1, 2, 3}}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)

	_, err = store.Search(ctx, "docs", []float32{1}, 1, nil)
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)

	err = store.EnsureCollection(ctx, "docs", 3)
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)

	results, err := store.Search(ctx, "missing", []float32{0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalStore_UpsertReplacesAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "docs", testPoints()))

	require.NoError(t, store.Upsert(ctx, "docs", []Point{{ID: "a", Vec: []float32{9, 9}, Text: "moved"}}))
	assert.Equal(t, 3, store.Count("docs"))

	results, err := store.Search(ctx, "docs", []float32{9, 9}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "moved", results[0].Text)

	require.NoError(t, store.Delete(ctx, "docs", []string{"a", "b", "unknown"}))
	assert.Equal(t, 1, store.Count("docs"))

	exists, err := store.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.CollectionExists(ctx, "other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "docs", 2))
	require.NoError(t, store.Upsert(ctx, "docs", testPoints()))
	require.NoError(t, store.Delete(ctx, "docs", []string{"b"}))
	require.NoError(t, store.Close())

	reopened, err := NewLocalStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reopened.Close()
	})

	exists, err := reopened.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 2, reopened.Count("docs"))

	results, err := reopened.Search(ctx, "docs", []float32{3, 4}, 1, map[string]any{MetaDocumentID: 2})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, "far", results[0].Text)
	assert.Equal(t, int64(2), results[0].Meta[MetaDocumentID])
	assert.Equal(t, []any{"x", "y"}, results[0].Meta[MetaTags])

	err = reopened.EnsureCollection(ctx, "docs", 5)
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
}
