package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parametric-ai/searchdocs/pkg/models"
)

// Tracker records and queries documentation search usage.
type Tracker interface {
	// Record stores one resolved search.
	Record(ctx context.Context, rec models.SearchRecord) error
	// Summary returns aggregated usage across all searches.
	Summary(ctx context.Context) (models.UsageSummary, error)
	// Recent returns the most recent searches, newest first.
	Recent(ctx context.Context, limit int) ([]models.SearchRecord, error)
	// Total returns total tokens used since a given time.
	Total(ctx context.Context, since time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS search_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	query TEXT NOT NULL,
	cached INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_search_records_time ON search_records(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores one resolved search.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.SearchRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO search_records (request_id, query, cached, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Query, rec.Cached, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMS, createdAt,
	)
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// Summary returns aggregated usage across all searches.
func (t *SQLiteTracker) Summary(ctx context.Context) (models.UsageSummary, error) {
	var s models.UsageSummary
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(cached), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0)
		 FROM search_records`,
	).Scan(&s.Searches, &s.CacheHits, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("usage summary: %w", err)
	}
	return s, nil
}

// Recent returns the most recent searches, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, request_id, query, cached, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at
		 FROM search_records ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	defer rows.Close()

	var records []models.SearchRecord
	for rows.Next() {
		var rec models.SearchRecord
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Query, &rec.Cached,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.LatencyMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Total returns total tokens used since a given time.
func (t *SQLiteTracker) Total(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM search_records WHERE created_at >= ?`, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("usage total: %w", err)
	}
	return total, nil
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
