package vectorstore

import (
	"context"
	"fmt"

	"rag-pipeline/internal/config"
)

// New opens the vector store selected by cfg.VectorStore and ensures the
// configured collection exists with the given vector size.
func New(ctx context.Context, cfg *config.Config, vectorSize int) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.VectorStore {
	case config.VectorStoreLocal:
		store, err = NewLocalStore(cfg.VectorStorePersistDir)
	case config.VectorStoreQdrant:
		store, err = NewQdrantStore(ctx, cfg.QdrantURL, cfg.QdrantAPIKey)
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s vector store: %w", cfg.VectorStore, err)
	}

	if err := store.EnsureCollection(ctx, cfg.Collection, vectorSize); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return store, nil
}
