package memory

import (
	"context"
	"strings"

	"github.com/hession/chatbridge/internal/logger"
	"go.uber.org/zap"
)

// DefaultContextLimit is how many prior exchanges are recalled per turn
const DefaultContextLimit = 3

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever recalls a user's past exchanges that resemble a query.
// A Retriever without a store is disabled and always returns nothing.
type Retriever struct {
	store    Store
	embedder Embedder
	limit    int
}

// NewRetriever creates a retriever; store may be nil.
func NewRetriever(store Store, embedder Embedder, limit int) *Retriever {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	return &Retriever{store: store, embedder: embedder, limit: limit}
}

// Enabled reports whether a store is attached
func (r *Retriever) Enabled() bool {
	return r != nil && r.store != nil && r.embedder != nil
}

// FetchContext returns at most limit prior exchanges of userID, best match
// first. Failures are logged and yield an empty result.
func (r *Retriever) FetchContext(ctx context.Context, userID int64, query string) []Exchange {
	if !r.Enabled() || strings.TrimSpace(query) == "" {
		return nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logger.L().Warn("context embedding failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}

	matches, err := r.store.Search(ctx, vector, userID, r.limit)
	if err != nil {
		logger.L().Warn("context search failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}

	out := make([]Exchange, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Exchange)
	}
	logger.Debug("recalled %d exchanges for user %d", len(out), userID)
	return out
}
