package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/openai/openai-go"

	"rag-pipeline/internal/config"
)

// DefaultHashDimension is the vector size of HashEmbedder when none is configured.
const DefaultHashDimension = 8

// HashEmbedder is a deterministic, offline embedder.
// Each component is taken from the SHA-256 digest of the text modulo 1000.
// Dimensions beyond the eight components of one digest come from digests of the
// text suffixed with a block counter.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder. A non-positive dimension selects DefaultHashDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Dimension returns the vector size.
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// EmbedTexts hashes every text into a vector.
func (e *HashEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	const perDigest = sha256.Size / 4

	vec := make([]float32, e.dimension)
	var digest [sha256.Size]byte
	for i := range vec {
		if i%perDigest == 0 {
			block := i / perDigest
			if block == 0 {
				digest = sha256.Sum256([]byte(text))
			} else {
				digest = sha256.Sum256([]byte(text + "#" + strconv.Itoa(block)))
			}
		}
		off := (i % perDigest) * 4
		vec[i] = float32(binary.BigEndian.Uint32(digest[off:off+4]) % 1000)
	}
	return vec
}

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an embedder for the OpenAI API or a compatible server.
// baseURL may be empty to use the default endpoint. Returns ErrMissingAPIKey when apiKey is empty.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}, nil
}

// Dimension returns the expected vector size.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// EmbedTexts embeds all texts in a single request.
// Validates that one vector of the expected size is returned per input.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", data.Index, len(data.Embedding), e.dimension)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[data.Index] = vec
	}

	for i, vec := range result {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return result, nil
}

// NewEmbedder builds the embedder selected by cfg.EmbeddingProvider.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderLocal:
		return NewHashEmbedder(cfg.EmbeddingDimension), nil
	case config.ProviderOpenAI:
		embedder, err := NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai embedder: %w", err)
		}
		return embedder, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}
