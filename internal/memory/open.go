package memory

import (
	"context"
	"fmt"

	"github.com/hession/chatbridge/internal/config"
	"github.com/hession/chatbridge/internal/logger"
)

// OpenStore builds the configured vector store and makes sure its
// collection exists. A nil Store with a nil error means long-term memory
// is disabled. An unreachable Qdrant disables memory instead of failing.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	var store Store
	switch backend := cfg.MemoryBackend(); backend {
	case "none":
		logger.Info("long-term memory disabled")
		return nil, nil
	case "qdrant":
		if !cfg.QdrantConfigured() {
			logger.Warn("Qdrant credentials not found. Memory features will be disabled.")
			return nil, nil
		}
		store = NewQdrantStore(cfg.Memory.QdrantURL, cfg.Memory.QdrantAPIKey, cfg.Memory.Collection, cfg.Memory.Dimension)
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Memory.DBPath, cfg.Memory.Dimension)
		if err != nil {
			return nil, err
		}
		store = s
	case "memory":
		store = NewInMemoryStore(cfg.Memory.Dimension)
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", backend)
	}

	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		if cfg.MemoryBackend() == "qdrant" {
			logger.Error("Failed to initialize Qdrant: %v", err)
			logger.Warn("Memory features will be disabled.")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to prepare %s store: %w", cfg.MemoryBackend(), err)
	}
	if s, ok := store.(*SQLiteStore); ok {
		if n, err := s.Count(ctx); err == nil {
			logger.Info("sqlite memory at %s holds %d exchanges", cfg.Memory.DBPath, n)
		}
	}
	logger.Info("long-term memory backend: %s", cfg.MemoryBackend())
	return store, nil
}
