package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/prompt-review/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB opens the review-history database and verifies the connection
func NewDB(cfg config.HistoryConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("history database connection established",
		zap.String("connection", cfg.LogString()))

	return WrapDB(db, logger), nil
}

// WrapDB wraps an already opened pool
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Debug("closing history database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// historySchema creates the ledger tables. Decisions reference their session.
const historySchema = `
	CREATE TABLE IF NOT EXISTS review_sessions (
		id UUID PRIMARY KEY,
		reviewer VARCHAR(255) NOT NULL,
		pending_log TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP NOT NULL,
		items_reviewed INTEGER NOT NULL DEFAULT 0,
		items_approved INTEGER NOT NULL DEFAULT 0,
		items_rejected INTEGER NOT NULL DEFAULT 0,
		items_skipped INTEGER NOT NULL DEFAULT 0,
		allowlist_added INTEGER NOT NULL DEFAULT 0,
		log_truncated BOOLEAN NOT NULL DEFAULT false
	);

	CREATE TABLE IF NOT EXISTS review_decisions (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES review_sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		item_timestamp VARCHAR(64) NOT NULL,
		text TEXT NOT NULL,
		classification VARCHAR(64) NOT NULL,
		risk_score INTEGER NOT NULL,
		suggested VARCHAR(16) NOT NULL,
		decision VARCHAR(16) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_review_sessions_reviewer ON review_sessions(reviewer);
	CREATE INDEX IF NOT EXISTS idx_review_sessions_started_at ON review_sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_review_decisions_session_id ON review_decisions(session_id);
	CREATE INDEX IF NOT EXISTS idx_review_decisions_decision ON review_decisions(decision);
`

// InitHistorySchema creates the review-history tables if they do not exist
func (db *DB) InitHistorySchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	db.logger.Debug("history schema initialized")
	return nil
}
