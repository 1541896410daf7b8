package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps points in process memory. Used by the console
// transport and tests; nothing survives a restart.
type InMemoryStore struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]Point
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore(dimension int) *InMemoryStore {
	return &InMemoryStore{dimension: dimension, points: make(map[string]Point)}
}

func (s *InMemoryStore) EnsureCollection(context.Context) error {
	return nil
}

func (s *InMemoryStore) Upsert(_ context.Context, point Point) error {
	if err := checkDimension(point.Vector, s.dimension); err != nil {
		return err
	}
	point.Vector = append([]float32(nil), point.Vector...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[point.ID] = point
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, vector []float32, userID int64, limit int) ([]Match, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}

	s.mu.RLock()
	candidates := make([]Point, 0, len(s.points))
	for _, p := range s.points {
		if p.UserID == userID {
			candidates = append(candidates, p)
		}
	}
	s.mu.RUnlock()

	return rankPoints(vector, candidates, limit), nil
}

// Len returns the number of stored points
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *InMemoryStore) Close() error {
	return nil
}
