package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore local vector storage on SQLite. Similarity is computed in
// process over the user's rows, which is fine at chat-history scale.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(dbPath string, dimension int) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLiteStore{db: db, dimension: dimension}, nil
}

// EnsureCollection initializes database tables
func (s *SQLiteStore) EnsureCollection(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS memory_points (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			vector BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_points_user_id ON memory_points(user_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}
	return nil
}

// Upsert saves a point
func (s *SQLiteStore) Upsert(ctx context.Context, point Point) error {
	if err := checkDimension(point.Vector, s.dimension); err != nil {
		return err
	}
	ts := point.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_points (id, user_id, session_id, message, response, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		point.ID, point.UserID, point.SessionID, point.Message, point.Response, encodeVector(point.Vector), ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save memory point: %w", err)
	}
	return nil
}

// Search ranks the user's points by cosine similarity
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, userID int64, limit int) ([]Match, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, message, response, vector, created_at
		 FROM memory_points
		 WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var blob []byte
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Message, &p.Response, &blob, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan memory point: %w", err)
		}
		if p.Vector, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("memory point %s: %w", p.ID, err)
		}
		p.UserID = userID
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memory points: %w", err)
	}

	return rankPoints(vector, points, limit), nil
}

// Count returns the number of stored points
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_points").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memory points: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
