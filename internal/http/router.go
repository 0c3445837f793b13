package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rag-pipeline/internal/extract"
	"rag-pipeline/internal/handlers"
	"rag-pipeline/internal/metrics"
	"rag-pipeline/internal/rag"
	"rag-pipeline/internal/service"
	"rag-pipeline/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	AppName        string
	Documents      service.DocumentService
	RAGEngine      rag.Engine
	Extractor      *extract.Extractor
	MaxUploadBytes int64
	VectorStore    vectorstore.VectorStore
	DB             handlers.Pinger
	CollectionName string
	Metrics        *metrics.Metrics
	// Gatherer backs GET /metrics. The route is not registered when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	// Registered before Recoverer: recovered panics are recorded as 500.
	r.Use(Metrics(deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	documentsHandler := handlers.NewDocumentsHandler(deps.Documents, deps.Extractor, deps.MaxUploadBytes)
	queryHandler := handlers.NewQueryHandler(deps.RAGEngine)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.DB, deps.CollectionName)
	statsHandler := handlers.NewStatsHandler(deps.Documents)

	r.Get("/", handlers.Root(deps.AppName))
	r.Method(http.MethodGet, "/health", healthHandler)
	r.Method(http.MethodGet, "/stats", statsHandler)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", documentsHandler.Create)
		r.Get("/", documentsHandler.List)
		r.Get("/{id}", documentsHandler.Get)
		r.Delete("/{id}", documentsHandler.Delete)
	})

	r.Method(http.MethodPost, "/query", queryHandler)

	return r
}
