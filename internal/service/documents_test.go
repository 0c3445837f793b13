package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"rag-pipeline/internal/indexer"
	"rag-pipeline/internal/service"
	"rag-pipeline/internal/service/mocks"
	"rag-pipeline/internal/storage"
	storage_mocks "rag-pipeline/internal/storage/mocks"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fixture struct {
	ingester  *mocks.MockIngester
	documents *storage_mocks.MockDocumentStore
	chunks    *storage_mocks.MockChunkStore
	svc       service.DocumentService
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		ingester:  mocks.NewMockIngester(ctrl),
		documents: storage_mocks.NewMockDocumentStore(ctrl),
		chunks:    storage_mocks.NewMockChunkStore(ctrl),
	}
	f.svc = service.NewDocumentService(f.ingester, f.documents, f.chunks, nil)
	return f
}

func TestDocumentService_Create(t *testing.T) {
	tests := []struct {
		name         string
		req          service.CreateDocumentRequest
		mockSetup    func(f *fixture)
		want         *service.CreateDocumentResult
		checkErrType func(error) bool
	}{
		{
			name: "successful ingest",
			req:  service.CreateDocumentRequest{Title: "Doc", Tags: []string{"a"}, Text: "hello world"},
			mockSetup: func(f *fixture) {
				f.ingester.EXPECT().
					Ingest(gomock.Any(), indexer.IngestRequest{Title: "Doc", Tags: []string{"a"}, Text: "hello world"}).
					Return(&indexer.IngestResult{DocumentID: 7, ChunkCount: 1}, nil)
			},
			want: &service.CreateDocumentResult{DocumentID: 7, ChunkCount: 1},
		},
		{
			name:      "missing title",
			req:       service.CreateDocumentRequest{Title: "  ", Text: "hello"},
			mockSetup: func(*fixture) {},
			checkErrType: func(err error) bool {
				v, ok := service.AsValidationError(err)
				return ok && v.Field == "title"
			},
		},
		{
			name:      "empty text",
			req:       service.CreateDocumentRequest{Title: "Doc", Text: ""},
			mockSetup: func(*fixture) {},
			checkErrType: func(err error) bool {
				v, ok := service.AsValidationError(err)
				return ok && v.Message == "No text provided"
			},
		},
		{
			name: "pipeline rejects text",
			req:  service.CreateDocumentRequest{Title: "Doc", Text: "hello"},
			mockSetup: func(f *fixture) {
				f.ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("failed to ingest document: %w", indexer.ErrEmptyText))
			},
			checkErrType: func(err error) bool {
				v, ok := service.AsValidationError(err)
				return ok && v.Field == "text"
			},
		},
		{
			name: "embedding failure",
			req:  service.CreateDocumentRequest{Title: "Doc", Text: "hello"},
			mockSetup: func(f *fixture) {
				f.ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: %w", indexer.ErrEmbeddingFailed, errors.New("timeout")))
			},
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrExternalService) && errors.Is(err, indexer.ErrEmbeddingFailed)
			},
		},
		{
			name: "vector store failure",
			req:  service.CreateDocumentRequest{Title: "Doc", Text: "hello"},
			mockSetup: func(f *fixture) {
				f.ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: %w", indexer.ErrIndexFailed, errors.New("unavailable")))
			},
			checkErrType: func(err error) bool {
				return errors.Is(err, service.ErrExternalService)
			},
		},
		{
			name: "database failure",
			req:  service.CreateDocumentRequest{Title: "Doc", Text: "hello"},
			mockSetup: func(f *fixture) {
				f.ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))
			},
			checkErrType: func(err error) bool {
				_, isValidation := service.AsValidationError(err)
				return !isValidation && !errors.Is(err, service.ErrExternalService)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mockSetup(f)

			got, err := f.svc.Create(context.Background(), tt.req)
			if tt.checkErrType != nil {
				if err == nil {
					t.Fatalf("Create() = %+v, want error", got)
				}
				if !tt.checkErrType(err) {
					t.Errorf("Create() error = %v has the wrong type", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if *got != *tt.want {
				t.Errorf("Create() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDocumentService_List(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f.documents.EXPECT().List(gomock.Any()).Return([]*storage.Document{
		{ID: 1, Title: "a", Tags: []string{"x"}, ChunkCount: 2, CreatedAt: created},
		{ID: 2, Title: "b", Source: "s", ChunkCount: 0},
	}, nil)

	got, err := f.svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(got))
	}
	if got[0].ID != 1 || got[0].ChunkCount != 2 || !got[0].CreatedAt.Equal(created) {
		t.Errorf("List()[0] = %+v", got[0])
	}
	if got[1].Tags == nil || len(got[1].Tags) != 0 {
		t.Errorf("List()[1].Tags = %#v, want empty slice", got[1].Tags)
	}
}

func TestDocumentService_Get(t *testing.T) {
	t.Run("returns chunks", func(t *testing.T) {
		f := newFixture(t)
		f.documents.EXPECT().GetByID(gomock.Any(), int64(3)).Return(&storage.Document{ID: 3, Title: "t"}, nil)
		f.chunks.EXPECT().ListByDocument(gomock.Any(), int64(3)).Return([]*storage.Chunk{
			{ID: 10, DocumentID: 3, Index: 0, Text: "abc", StartOffset: 0, EndOffset: 3},
			{ID: 11, DocumentID: 3, Index: 1, Text: "cde", StartOffset: 2, EndOffset: 5},
		}, nil)

		got, err := f.svc.Get(context.Background(), 3)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(got.Chunks) != 2 || got.Chunks[1].Index != 1 || got.Chunks[1].StartOffset != 2 {
			t.Errorf("Get().Chunks = %+v", got.Chunks)
		}
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		f.documents.EXPECT().GetByID(gomock.Any(), int64(99)).Return(nil, storage.ErrNotFound)

		_, err := f.svc.Get(context.Background(), 99)
		if !errors.Is(err, service.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDocumentService_Delete(t *testing.T) {
	tests := []struct {
		name    string
		mockErr error
		wantErr error
	}{
		{name: "deleted"},
		{name: "not found", mockErr: storage.ErrNotFound, wantErr: service.ErrNotFound},
		{name: "vector store failure", mockErr: fmt.Errorf("%w: boom", indexer.ErrIndexFailed), wantErr: service.ErrExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ingester.EXPECT().DeleteDocument(gomock.Any(), int64(5)).Return(tt.mockErr)

			err := f.svc.Delete(context.Background(), 5)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Delete() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentService_Stats(t *testing.T) {
	f := newFixture(t)
	f.ingester.EXPECT().Stats(gomock.Any()).Return(&indexer.CorpusStats{Documents: 4, Chunks: 9}, nil)

	got, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got.Documents != 4 || got.Chunks != 9 {
		t.Errorf("Stats() = %+v", got)
	}
}
