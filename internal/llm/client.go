package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"rag-pipeline/internal/config"
)

// DefaultMaxContextChars bounds the context sent to a remote model when none is configured.
const DefaultMaxContextChars = 8000

const systemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say that you don't know."

// EchoGenerator answers by echoing the query and its context. It never calls a model.
type EchoGenerator struct{}

// NewEchoGenerator creates an EchoGenerator.
func NewEchoGenerator() *EchoGenerator {
	return &EchoGenerator{}
}

// GenerateAnswer returns the query followed by the context passages, one per line.
func (g *EchoGenerator) GenerateAnswer(_ context.Context, query string, contextTexts []string) (string, error) {
	return fmt.Sprintf("Answer to: %s\nContext:\n%s", query, strings.Join(contextTexts, "\n")), nil
}

// OpenAIGenerator answers through the OpenAI chat completions API.
type OpenAIGenerator struct {
	client          *openai.Client
	model           string
	maxContextChars int
}

// NewOpenAIGenerator creates a generator for the OpenAI API or a compatible server.
// Returns ErrMissingAPIKey when apiKey is empty.
func NewOpenAIGenerator(apiKey, baseURL, model string, maxContextChars int) (*OpenAIGenerator, error) {
	client, err := newOpenAIClient(apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &OpenAIGenerator{
		client:          client,
		model:           model,
		maxContextChars: maxContextChars,
	}, nil
}

// GenerateAnswer sends the numbered context and the question as one user message.
func (g *OpenAIGenerator) GenerateAnswer(ctx context.Context, query string, contextTexts []string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(g.buildPrompt(query, contextTexts)),
		},
		Model: openai.ChatModel(g.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildPrompt formats context passages as a numbered list, dropping whatever does
// not fit in maxContextChars characters.
func (g *OpenAIGenerator) buildPrompt(query string, contextTexts []string) string {
	var b strings.Builder
	b.WriteString("Context:\n")

	remaining := g.maxContextChars
	for i, text := range contextTexts {
		if remaining <= 0 {
			break
		}
		runes := []rune(text)
		if len(runes) > remaining {
			runes = runes[:remaining]
		}
		remaining -= len(runes)
		fmt.Fprintf(&b, "[%d] %s\n", i+1, string(runes))
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// NewGenerator builds the generator selected by cfg.LLMProvider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderEcho:
		return NewEchoGenerator(), nil
	case config.ProviderOpenAI:
		generator, err := NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel, cfg.LLMMaxContextChars)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai generator: %w", err)
		}
		return generator, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
