package vectorstore

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name    string
		urlStr  string
		want    qdrantEndpoint
		wantErr bool
	}{
		{
			name:   "default port",
			urlStr: "http://localhost:6333",
			want:   qdrantEndpoint{host: "localhost", port: 6334},
		},
		{
			name:   "custom port",
			urlStr: "http://qdrant:9000",
			want:   qdrantEndpoint{host: "qdrant", port: 9001},
		},
		{
			name:   "no port",
			urlStr: "http://localhost",
			want:   qdrantEndpoint{host: "localhost", port: 6334},
		},
		{
			name:   "no hostname",
			urlStr: "http://:6333",
			want:   qdrantEndpoint{host: "localhost", port: 6334},
		},
		{
			name:   "https enables TLS",
			urlStr: "https://cloud.example.com:6333",
			want:   qdrantEndpoint{host: "cloud.example.com", port: 6334, useTLS: true},
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQdrantURL(tt.urlStr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseQdrantURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseQdrantURL() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewQdrantStore_InvalidURL(t *testing.T) {
	_, err := NewQdrantStore(context.Background(), "://invalid", "")
	if err == nil {
		t.Error("NewQdrantStore() with invalid URL should return error")
	}
}

func TestQdrantStore_EarlyReturns(t *testing.T) {
	// a store without a client must not be touched by these calls
	store := &QdrantStore{}
	ctx := context.Background()

	if err := store.Upsert(ctx, "test-collection", []Point{}); err != nil {
		t.Errorf("Upsert() with empty points error = %v", err)
	}
	if err := store.Delete(ctx, "test-collection", []string{}); err != nil {
		t.Errorf("Delete() with empty IDs error = %v", err)
	}
	if _, err := store.Search(ctx, "test-collection", []float32{1, 2}, 0, nil); err == nil {
		t.Error("Search() with k=0 should return error")
	}
	if _, err := store.Search(ctx, "test-collection", []float32{1, 2}, 1, map[string]any{"x": struct{}{}}); err == nil {
		t.Error("Search() with unsupported filter should return error")
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestToQdrantPoints(t *testing.T) {
	points, err := toQdrantPoints([]Point{{
		ID:   "6f1b2d0e-7a0a-4c1e-9a43-2f1c4a3b5d6e",
		Vec:  []float32{1, 2},
		Text: "chunk text",
		Meta: map[string]any{MetaDocumentID: int64(4), MetaTags: []string{"a", "b"}},
	}})
	if err != nil {
		t.Fatalf("toQdrantPoints() error = %v", err)
	}

	payload := convertPayloadToMap(points[0].Payload)
	if payload[payloadText] != "chunk text" {
		t.Errorf("payload text = %v, want chunk text", payload[payloadText])
	}
	if payload[MetaDocumentID] != int64(4) {
		t.Errorf("payload document_id = %#v, want int64(4)", payload[MetaDocumentID])
	}
	tags, ok := payload[MetaTags].([]any)
	if !ok || len(tags) != 2 || tags[1] != "b" {
		t.Errorf("payload tags = %#v, want [a b]", payload[MetaTags])
	}

	_, err = toQdrantPoints([]Point{{ID: "x", Meta: map[string]any{payloadText: "clash"}}})
	if err == nil {
		t.Error("toQdrantPoints() should reject the reserved text key")
	}
}

func TestFromScoredPoint(t *testing.T) {
	point := &qdrant.ScoredPoint{
		Id:    qdrant.NewID("6f1b2d0e-7a0a-4c1e-9a43-2f1c4a3b5d6e"),
		Score: 2.5,
		Payload: qdrant.NewValueMap(map[string]any{
			payloadText:    "hello",
			MetaDocumentID: int64(9),
		}),
	}

	got := fromScoredPoint(point)
	if got.ID != "6f1b2d0e-7a0a-4c1e-9a43-2f1c4a3b5d6e" {
		t.Errorf("ID = %s", got.ID)
	}
	if got.Text != "hello" {
		t.Errorf("Text = %q, want hello", got.Text)
	}
	if got.Score != 2.5 {
		t.Errorf("Score = %v, want 2.5", got.Score)
	}
	if _, ok := got.Meta[payloadText]; ok {
		t.Error("Meta should not contain the text payload")
	}
	if got.Meta[MetaDocumentID] != int64(9) {
		t.Errorf("Meta document_id = %#v, want int64(9)", got.Meta[MetaDocumentID])
	}
}

func TestBuildQdrantFilter(t *testing.T) {
	tests := []struct {
		name      string
		filters   map[string]any
		wantNil   bool
		wantCount int
		wantErr   bool
	}{
		{name: "no filters", filters: nil, wantNil: true},
		{name: "string", filters: map[string]any{MetaTitle: "Guide"}, wantCount: 1},
		{name: "integral json number", filters: map[string]any{MetaDocumentID: float64(3)}, wantCount: 1},
		{name: "fractional number", filters: map[string]any{"score": 0.5}, wantCount: 1},
		{name: "bool", filters: map[string]any{"draft": true}, wantCount: 1},
		{name: "keyword list", filters: map[string]any{MetaTags: []any{"a", "b"}}, wantCount: 1},
		{name: "int list", filters: map[string]any{MetaDocumentID: []any{float64(1), float64(2)}}, wantCount: 1},
		{name: "several keys", filters: map[string]any{MetaTitle: "x", MetaTags: "y"}, wantCount: 2},
		{name: "empty list", filters: map[string]any{MetaTags: []any{}}, wantErr: true},
		{name: "mixed list", filters: map[string]any{MetaTags: []any{"a", float64(1)}}, wantErr: true},
		{name: "fractional list", filters: map[string]any{"score": []any{0.5}}, wantErr: true},
		{name: "unsupported", filters: map[string]any{"x": map[string]any{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildQdrantFilter(tt.filters)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildQdrantFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("buildQdrantFilter() = %v, want nil", got)
				}
				return
			}
			if len(got.Must) != tt.wantCount {
				t.Errorf("buildQdrantFilter() has %d conditions, want %d", len(got.Must), tt.wantCount)
			}
		})
	}
}

func TestConvertPayloadToMap(t *testing.T) {
	result := convertPayloadToMap(nil)
	if result == nil {
		t.Error("convertPayloadToMap() should return empty map, not nil")
	}
	if len(result) != 0 {
		t.Errorf("convertPayloadToMap() with nil should return empty map, got %d items", len(result))
	}
}
