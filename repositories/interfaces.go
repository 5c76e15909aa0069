package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/prompt-review/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// PendingLogStore is the queue of prompts the gateway flagged for review
type PendingLogStore interface {
	// Load returns every pending row in file order.
	// Returns services.ErrMissingStore or services.ErrEmptyStore when there is
	// nothing to review, and a validation error for a malformed row.
	Load(ctx context.Context) ([]models.ReviewItem, error)

	// Truncate overwrites the log with the header line only
	Truncate(ctx context.Context) error

	// Location identifies the store in logs and history
	Location() string
}

// AllowListStore is the append-only allow-list read by the gateway
type AllowListStore interface {
	// Append writes the entries in order and returns how many were written.
	// Existing content is never read or rewritten.
	Append(ctx context.Context, entries []models.AllowListEntry) (int, error)

	// Location identifies the store in logs and history
	Location() string
}

// ReviewHistoryRepository persists completed review sessions
type ReviewHistoryRepository interface {
	// RecordSession stores the session row and its decisions atomically
	RecordSession(ctx context.Context, session *models.ReviewSession, decisions []*models.ReviewDecisionRecord) error

	// CountDecisions returns how many decisions were stored for a session
	CountDecisions(ctx context.Context, sessionID uuid.UUID) (int, error)

	// Close releases the underlying connection
	Close() error
}
