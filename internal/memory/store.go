package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDimensionMismatch is returned when a vector does not match the
// collection's configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store vector storage interface
type Store interface {
	// EnsureCollection creates the backing collection if it does not exist
	EnsureCollection(ctx context.Context) error

	// Upsert writes one point
	Upsert(ctx context.Context, point Point) error

	// Search returns the nearest points owned by userID, best first
	Search(ctx context.Context, vector []float32, userID int64, limit int) ([]Match, error)

	// Close releases the store
	Close() error
}

// Exchange one completed user/assistant turn
type Exchange struct {
	UserID    int64
	SessionID string
	Message   string
	Response  string
	Timestamp time.Time
}

// Text is the string that gets embedded for an exchange.
func (e Exchange) Text() string {
	return fmt.Sprintf("User: %s\nAssistant: %s", e.Message, e.Response)
}

// Point a persisted, embedded exchange
type Point struct {
	ID     string
	Vector []float32
	Exchange
}

// Match a search hit
type Match struct {
	Exchange
	Score float64
}

func checkDimension(vector []float32, dimension int) error {
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}
