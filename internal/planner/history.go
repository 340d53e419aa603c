package planner

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryEntry is one persisted plan invocation.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Partial     bool      `json:"partial"`
	ErrorCount  int       `json:"error_count"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryStore persists plan invocations in SQLite.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistoryStore opens (or creates) the plan history database at path.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewHistoryStore(db)
}

// NewHistoryStore wraps an existing database handle and ensures schema.
func NewHistoryStore(db *sql.DB) (*HistoryStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureHistorySchema(db); err != nil {
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

func ensureHistorySchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			destination TEXT NOT NULL,
			partial INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Record stores a finished plan invocation.
func (s *HistoryStore) Record(ctx context.Context, entry HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, destination, partial, error_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Destination,
		boolToInt(entry.Partial),
		entry.ErrorCount,
		entry.DurationMs,
		entry.CreatedAt,
	)
	return err
}

// List returns the most recent plan invocations, newest first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, destination, partial, error_count, duration_ms, created_at
		FROM plans
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry   HistoryEntry
			partial int
			created sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entry.Destination, &partial, &entry.ErrorCount, &entry.DurationMs, &created); err != nil {
			return nil, err
		}
		entry.Partial = partial != 0
		if created.Valid {
			entry.CreatedAt = created.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
