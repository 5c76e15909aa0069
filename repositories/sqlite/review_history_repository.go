// Package sqlite stores the review-history ledger in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/upb/prompt-review/repositories/sqldb"
	"go.uber.org/zap"
)

const schema = `
	CREATE TABLE IF NOT EXISTS review_sessions (
		id TEXT PRIMARY KEY,
		reviewer TEXT NOT NULL,
		pending_log TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		items_reviewed INTEGER NOT NULL DEFAULT 0,
		items_approved INTEGER NOT NULL DEFAULT 0,
		items_rejected INTEGER NOT NULL DEFAULT 0,
		items_skipped INTEGER NOT NULL DEFAULT 0,
		allowlist_added INTEGER NOT NULL DEFAULT 0,
		log_truncated BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS review_decisions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES review_sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		item_timestamp TEXT NOT NULL,
		text TEXT NOT NULL,
		classification TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		suggested TEXT NOT NULL,
		decision TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(session_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_review_sessions_reviewer ON review_sessions(reviewer);
	CREATE INDEX IF NOT EXISTS idx_review_decisions_session_id ON review_decisions(session_id);
`

// OpenDB prepares a handle on the ledger file. sql.Open does not touch the
// disk, so the directory and file are only created by the first write.
func OpenDB(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("history database path cannot be empty")
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewReviewHistoryRepository creates the sqlite ledger for dbPath
func NewReviewHistoryRepository(dbPath string, logger *zap.Logger) (*sqldb.HistoryRepository, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	return sqldb.NewHistoryRepository(db, sqldb.Dialect{
		Name:        "sqlite3",
		Placeholder: sqldb.QuestionPlaceholder,
		Prepare: func(ctx context.Context, db *sql.DB) error {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
			return nil
		},
	}, logger), nil
}
