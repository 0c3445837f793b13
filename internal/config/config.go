package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	AppName string
	Debug   bool

	DBPath string

	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int

	VectorStore           string
	VectorStorePersistDir string
	QdrantURL             string
	QdrantAPIKey          string
	Collection            string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLMProvider        string
	LLMModel           string
	LLMMaxContextChars int

	ChunkSize    int
	ChunkOverlap int

	MaxUploadBytes int64
	PDFLicenseKey  string

	LogLevel  slog.Level
	LogFormat string
	APIPort   string
}

const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"

	VectorStoreLocal  = "local"
	VectorStoreQdrant = "qdrant"
)

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// A .env file in the current directory or any of the five parent directories is
// loaded first; variables already present in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		AppName:               getEnv("RAG_APP_NAME", "RAG Pipeline API"),
		DBPath:                parseDatabaseURL(getEnv("RAG_DATABASE_URL", "sqlite:///./data/rag.db")),
		EmbeddingProvider:     strings.ToLower(getEnv("RAG_EMBEDDING_PROVIDER", ProviderLocal)),
		EmbeddingModel:        getEnv("RAG_EMBEDDING_MODEL", "text-embedding-3-small"),
		VectorStore:           strings.ToLower(getEnv("RAG_VECTOR_STORE", VectorStoreLocal)),
		VectorStorePersistDir: getEnv("RAG_VECTOR_STORE_PERSIST_DIR", getEnv("RAG_CHROMA_PERSIST_DIRECTORY", "")),
		QdrantURL:             getEnv("RAG_QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:          getEnv("RAG_QDRANT_API_KEY", ""),
		Collection:            getEnv("RAG_COLLECTION", "rag-collection"),
		OpenAIAPIKey:          getEnv("RAG_OPENAI_API_KEY", getEnv("OPENAI_API_KEY", "")),
		OpenAIBaseURL:         getEnv("RAG_OPENAI_BASE_URL", ""),
		LLMProvider:           strings.ToLower(getEnv("RAG_LLM_PROVIDER", ProviderEcho)),
		LLMModel:              getEnv("RAG_LLM_MODEL", "gpt-4o-mini"),
		PDFLicenseKey:         getEnv("RAG_PDF_LICENSE_KEY", ""),
		LogFormat:             strings.ToLower(getEnv("RAG_LOG_FORMAT", "text")),
		APIPort:               getEnv("RAG_API_PORT", "8000"),
	}

	cfg.Debug, err = strconv.ParseBool(getEnv("RAG_DEBUG", "true"))
	if err != nil {
		return nil, fmt.Errorf("RAG_DEBUG must be a boolean: %w", err)
	}

	// chroma and dummy are accepted as aliases of the local store and echo generator
	if cfg.VectorStore == "chroma" {
		cfg.VectorStore = VectorStoreLocal
	}
	if cfg.LLMProvider == "dummy" {
		cfg.LLMProvider = ProviderEcho
	}

	switch cfg.EmbeddingProvider {
	case ProviderLocal, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("RAG_EMBEDDING_PROVIDER must be one of local, openai: got %q", cfg.EmbeddingProvider)
	}
	switch cfg.VectorStore {
	case VectorStoreLocal, VectorStoreQdrant:
	default:
		return nil, fmt.Errorf("RAG_VECTOR_STORE must be one of local, qdrant: got %q", cfg.VectorStore)
	}
	switch cfg.LLMProvider {
	case ProviderEcho, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("RAG_LLM_PROVIDER must be one of echo, openai: got %q", cfg.LLMProvider)
	}

	defaultDimension := "8"
	if cfg.EmbeddingProvider == ProviderOpenAI {
		defaultDimension = "1536"
	}
	if cfg.EmbeddingDimension, err = getPositiveInt("RAG_EMBEDDING_DIMENSION", defaultDimension); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getPositiveInt("RAG_CHUNK_SIZE", "1000"); err != nil {
		return nil, err
	}
	if cfg.LLMMaxContextChars, err = getPositiveInt("RAG_LLM_MAX_CONTEXT_CHARS", "8000"); err != nil {
		return nil, err
	}

	overlap, err := strconv.Atoi(getEnv("RAG_CHUNK_OVERLAP", "200"))
	if err != nil {
		return nil, fmt.Errorf("RAG_CHUNK_OVERLAP must be a valid integer: %w", err)
	}
	if overlap < 0 || overlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("RAG_CHUNK_OVERLAP must be in [0, RAG_CHUNK_SIZE): got %d", overlap)
	}
	cfg.ChunkOverlap = overlap

	maxUpload, err := strconv.ParseInt(getEnv("RAG_MAX_UPLOAD_BYTES", "20971520"), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, fmt.Errorf("RAG_MAX_UPLOAD_BYTES must be a positive integer")
	}
	cfg.MaxUploadBytes = maxUpload

	level, err := parseLogLevel(getEnv("RAG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	// RAG_DEBUG only raises verbosity when no explicit level is set
	if cfg.Debug && os.Getenv("RAG_LOG_LEVEL") == "" {
		cfg.LogLevel = slog.LevelDebug
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("RAG_LOG_FORMAT must be text or json: got %q", cfg.LogFormat)
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("RAG_DATABASE_URL is required")
	}

	if cfg.DBPath != ":memory:" {
		dataDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if cfg.VectorStorePersistDir != "" {
		if err := os.MkdirAll(cfg.VectorStorePersistDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector store directory: %w", err)
		}
	}

	return cfg, nil
}

// parseDatabaseURL accepts either a SQLAlchemy style sqlite URL or a plain file path.
func parseDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite3://", "file:"} {
		if strings.HasPrefix(raw, prefix) {
			return strings.TrimPrefix(raw, prefix)
		}
	}
	return raw
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("RAG_LOG_LEVEL must be one of debug, info, warn, error: got %q", raw)
	}
}

func getPositiveInt(key, defaultValue string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
