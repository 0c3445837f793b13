package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks rag-pipeline/internal/llm Embedder
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks rag-pipeline/internal/llm Generator

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMissingAPIKey is returned when a remote provider is configured without an API key.
var ErrMissingAPIKey = errors.New("missing API key")

// Embedder turns texts into fixed-length vectors.
type Embedder interface {
	// EmbedTexts returns one vector per input text, in input order.
	// All vectors have length Dimension().
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the length of the vectors produced by EmbedTexts.
	Dimension() int
}

// Generator produces an answer to a query from retrieved context passages.
type Generator interface {
	GenerateAnswer(ctx context.Context, query string, contextTexts []string) (string, error)
}

// newOpenAIClient builds a client for the OpenAI API or a compatible server.
// Retries are disabled so failures surface to the caller immediately.
func newOpenAIClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client, nil
}
