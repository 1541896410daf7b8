package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hession/chatbridge/internal/logger"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the worker is behind.
	ErrQueueFull = errors.New("persist queue full")
	// ErrPersisterClosed is returned by Enqueue after Close.
	ErrPersisterClosed = errors.New("persister closed")
)

const (
	defaultQueueSize = 64
	persistTimeout   = 30 * time.Second
)

// drainTimeout bounds how long Run keeps storing queued exchanges after
// its context is cancelled.
var drainTimeout = 5 * time.Second

// Persister writes exchanges to the store off the reply path. One worker
// drains a bounded queue; failures are only logged.
type Persister struct {
	store    Store
	embedder Embedder
	queue    chan Exchange

	mu     sync.Mutex
	closed bool
}

// NewPersister creates a persister; store may be nil, in which case every
// Enqueue is a no-op.
func NewPersister(store Store, embedder Embedder, queueSize int) *Persister {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Persister{
		store:    store,
		embedder: embedder,
		queue:    make(chan Exchange, queueSize),
	}
}

// Enabled reports whether exchanges are stored at all
func (p *Persister) Enabled() bool {
	return p != nil && p.store != nil && p.embedder != nil
}

// Enqueue schedules ex for persistence without blocking.
func (p *Persister) Enqueue(ex Exchange) error {
	if !p.Enabled() {
		return nil
	}
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPersisterClosed
	}
	select {
	case p.queue <- ex:
		return nil
	default:
		logger.L().Warn("dropping exchange, persist queue full",
			zap.Int64("user_id", ex.UserID), zap.String("session_id", ex.SessionID))
		return ErrQueueFull
	}
}

// Run stores queued exchanges until Close is called and the queue is
// empty. When ctx is cancelled first, whatever is already queued gets
// drainTimeout to be stored; anything left after that is logged as dropped.
func (p *Persister) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			p.drain(drainTimeout)
			return nil
		}
		select {
		case <-ctx.Done():
			p.drain(drainTimeout)
			return nil
		case ex, ok := <-p.queue:
			if !ok {
				return nil
			}
			p.persistOrLog(ctx, ex)
		}
	}
}

func (p *Persister) drain(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		if ctx.Err() != nil {
			if n := len(p.queue); n > 0 {
				logger.L().Warn("persister stopped with exchanges still queued", zap.Int("dropped", n))
			}
			return
		}
		select {
		case ex, ok := <-p.queue:
			if !ok {
				return
			}
			p.persistOrLog(ctx, ex)
		default:
			return
		}
	}
}

func (p *Persister) persistOrLog(ctx context.Context, ex Exchange) {
	if err := p.Persist(ctx, ex); err != nil {
		logger.L().Error("failed to persist exchange",
			zap.Int64("user_id", ex.UserID), zap.String("session_id", ex.SessionID), zap.Error(err))
	}
}

// Persist embeds and stores ex synchronously.
func (p *Persister) Persist(ctx context.Context, ex Exchange) error {
	if !p.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	vector, err := p.embedder.Embed(ctx, ex.Text())
	if err != nil {
		return fmt.Errorf("embed exchange: %w", err)
	}
	point := Point{ID: uuid.New().String(), Vector: vector, Exchange: ex}
	if err := p.store.Upsert(ctx, point); err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	logger.Debug("stored exchange %s for user %d", point.ID, ex.UserID)
	return nil
}

// Close stops accepting exchanges; Run returns once the queue is empty.
func (p *Persister) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}
