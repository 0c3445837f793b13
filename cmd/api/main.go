package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/extract"
	"rag-pipeline/internal/http"
	"rag-pipeline/internal/indexer"
	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/metrics"
	"rag-pipeline/internal/rag"
	"rag-pipeline/internal/service"
	"rag-pipeline/internal/storage"
	"rag-pipeline/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API ingests documents into a searchable corpus and answers questions from it.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: RAG Pipeline API
//   description: |
//     Retrieval-augmented generation over an uploaded document corpus.
//     Documents are chunked, embedded and indexed; queries retrieve the closest
//     chunks and pass them to a language model to produce an answer.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
//   - multipart/form-data
// produces:
//   - application/json

// hashEmbeddingModel names the local embedder in corpus statistics.
const hashEmbeddingModel = "sha256-hash"

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	embeddingModel := cfg.EmbeddingModel
	if cfg.EmbeddingProvider == config.ProviderLocal {
		embeddingModel = hashEmbeddingModel
	}
	slog.Info("Embedder ready", "provider", cfg.EmbeddingProvider, "model", embeddingModel, "dimension", embedder.Dimension())

	vectorStore, err := vectorstore.New(ctx, cfg, embedder.Dimension())
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()
	slog.Info("Vector store ready", "backend", cfg.VectorStore, "collection", cfg.Collection)

	generator, err := llm.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}
	slog.Debug("LLM configuration", "provider", cfg.LLMProvider, "model", cfg.LLMModel, "base_url", cfg.OpenAIBaseURL)

	chunker, err := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Invalid chunker configuration: %v", err)
	}

	// Create ingestion pipeline
	pipeline := indexer.NewPipeline(db, embedder, vectorStore, cfg.Collection, chunker, embeddingModel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry, db)

	documents := service.NewDocumentService(pipeline, storage.NewDocumentRepo(db), storage.NewChunkRepo(db), m)
	ragEngine := rag.NewEngine(embedder, vectorStore, cfg.Collection, generator, m)
	extractor := extract.New(cfg.PDFLicenseKey)
	if !extractor.PDFEnabled() {
		slog.Warn("PDF uploads disabled", "reason", "RAG_PDF_LICENSE_KEY not set")
	}
	slog.Info("RAG engine initialized")

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		AppName:        cfg.AppName,
		Documents:      documents,
		RAGEngine:      ragEngine,
		Extractor:      extractor,
		MaxUploadBytes: cfg.MaxUploadBytes,
		VectorStore:    vectorStore,
		DB:             db,
		CollectionName: cfg.Collection,
		Metrics:        m,
		Gatherer:       registry,
	})

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	// Start API server
	slog.Info("Starting API server", "addr", addr, "app", cfg.AppName)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
	slog.Info("API server stopped")
}
