package handlers

import (
	"errors"
	"testing"

	"rag-pipeline/internal/service"
)

func TestValidateRequest(t *testing.T) {
	type sample struct {
		Name  string `json:"display_name" validate:"required"`
		Limit int    `json:"limit" validate:"min=1,max=10"`
	}

	tests := []struct {
		name      string
		req       any
		wantField string
		wantMsg   string
	}{
		{name: "valid", req: sample{Name: "x", Limit: 3}},
		{name: "required uses json name", req: sample{Limit: 3}, wantField: "display_name", wantMsg: "Display name is required"},
		{name: "below min", req: sample{Name: "x", Limit: 0}, wantField: "limit", wantMsg: "Limit must be at least 1"},
		{name: "above max", req: sample{Name: "x", Limit: 11}, wantField: "limit", wantMsg: "Limit must be at most 10"},
		{name: "document request", req: CreateDocumentRequest{Text: "t"}, wantField: "title", wantMsg: "Title is required"},
		{name: "query request", req: QueryRequest{}, wantField: "query", wantMsg: "Query is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("validateRequest() error = %v", err)
				}
				return
			}

			validationErr, ok := service.AsValidationError(err)
			if !ok {
				t.Fatalf("validateRequest() error = %v, want ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", validationErr.Field, tt.wantField)
			}
			if validationErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", validationErr.Message, tt.wantMsg)
			}
			if !errors.Is(err, service.ErrInvalidInput) {
				t.Error("validation error should match ErrInvalidInput")
			}
		})
	}
}

func TestValidateRequest_NonStruct(t *testing.T) {
	err := validateRequest("not a struct")
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("validateRequest() error = %v, want ErrInvalidInput", err)
	}
}
