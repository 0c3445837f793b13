package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/mock/gomock"

	vectorstore_mocks "rag-pipeline/internal/vectorstore/mocks"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name         string
		vectorExists bool
		vectorErr    error
		pingErr      error
		wantStatus   int
		wantStatusS  string
		wantIssues   []string
	}{
		{
			name:         "healthy",
			vectorExists: true,
			wantStatus:   http.StatusOK,
			wantStatusS:  "healthy",
		},
		{
			name:         "collection missing",
			vectorExists: false,
			wantStatus:   http.StatusServiceUnavailable,
			wantStatusS:  "unhealthy",
			wantIssues:   []string{"vector_store_unavailable"},
		},
		{
			name:        "vector store down",
			vectorErr:   errors.New("connection refused"),
			wantStatus:  http.StatusServiceUnavailable,
			wantStatusS: "unhealthy",
			wantIssues:  []string{"vector_store_unavailable"},
		},
		{
			name:         "database down",
			vectorExists: true,
			pingErr:      errors.New("database is locked"),
			wantStatus:   http.StatusServiceUnavailable,
			wantStatusS:  "unhealthy",
			wantIssues:   []string{"database_unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			vs := vectorstore_mocks.NewMockVectorStore(ctrl)
			vs.EXPECT().CollectionExists(gomock.Any(), "documents").Return(tt.vectorExists, tt.vectorErr)

			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			if err != nil {
				t.Fatalf("sqlmock.New() error = %v", err)
			}
			defer db.Close()
			ping := mock.ExpectPing()
			if tt.pingErr != nil {
				ping.WillReturnError(tt.pingErr)
			}

			handler := NewHealthHandler(vs, db, "documents")
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantStatusS {
				t.Errorf("status field = %q, want %q", resp.Status, tt.wantStatusS)
			}
			if len(resp.Issues) != len(tt.wantIssues) {
				t.Fatalf("issues = %v, want %v", resp.Issues, tt.wantIssues)
			}
			for i := range tt.wantIssues {
				if resp.Issues[i] != tt.wantIssues[i] {
					t.Errorf("issues[%d] = %q, want %q", i, resp.Issues[i], tt.wantIssues[i])
				}
			}
			if resp.Timestamp == "" {
				t.Error("timestamp is empty")
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet sqlmock expectations: %v", err)
			}
		})
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	vs := vectorstore_mocks.NewMockVectorStore(ctrl)

	db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	handler := NewHealthHandler(vs, db, "documents")
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestRoot(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Root("rag-pipeline").ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp RootResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.App != "rag-pipeline" {
		t.Errorf("response = %+v", resp)
	}
}
