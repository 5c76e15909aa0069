package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/prompt-review/models"
	"github.com/upb/prompt-review/repositories"
	"go.uber.org/zap"
)

// Dialect captures what differs between the ledger backends
type Dialect struct {
	// Name is used in logs
	Name string

	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder func(n int) string

	// Prepare runs once before the first statement, typically creating the schema.
	// It is retried on the next call if it fails.
	Prepare func(ctx context.Context, db *sql.DB) error
}

// DollarPlaceholder renders $1, $2, ...
func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// QuestionPlaceholder renders ? for every parameter
func QuestionPlaceholder(int) string {
	return "?"
}

// HistoryRepository implements repositories.ReviewHistoryRepository on database/sql
type HistoryRepository struct {
	db      *sql.DB
	dialect Dialect
	tm      *TransactionManager
	logger  *zap.Logger

	mu       sync.Mutex
	prepared bool

	insertSession  string
	insertDecision string
	countDecisions string
}

// Ensure HistoryRepository implements repositories.ReviewHistoryRepository
var _ repositories.ReviewHistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a ledger repository. Nothing touches the
// database until the first call.
func NewHistoryRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *HistoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialect.Placeholder == nil {
		dialect.Placeholder = QuestionPlaceholder
	}
	return &HistoryRepository{
		db:      db,
		dialect: dialect,
		tm:      NewTransactionManager(db, logger),
		logger:  logger,
		insertSession: fmt.Sprintf(`
		INSERT INTO review_sessions (
			id, reviewer, pending_log, started_at, completed_at,
			items_reviewed, items_approved, items_rejected, items_skipped,
			allowlist_added, log_truncated
		) VALUES (%s)`, placeholders(dialect.Placeholder, 11)),
		insertDecision: fmt.Sprintf(`
		INSERT INTO review_decisions (
			id, session_id, position, item_timestamp, text, classification,
			risk_score, suggested, decision, created_at
		) VALUES (%s)`, placeholders(dialect.Placeholder, 10)),
		countDecisions: fmt.Sprintf(`
		SELECT COUNT(*) FROM review_decisions WHERE session_id = %s`, dialect.Placeholder(1)),
	}
}

func placeholders(render func(int) string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = render(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (r *HistoryRepository) prepare(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prepared || r.dialect.Prepare == nil {
		r.prepared = true
		return nil
	}
	if err := r.dialect.Prepare(ctx, r.db); err != nil {
		return err
	}
	r.prepared = true
	return nil
}

// RecordSession stores the session row and every decision in one transaction
func (r *HistoryRepository) RecordSession(ctx context.Context, session *models.ReviewSession, decisions []*models.ReviewDecisionRecord) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := r.prepare(ctx); err != nil {
		return fmt.Errorf("failed to prepare %s history store: %w", r.dialect.Name, err)
	}

	err := r.tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		executor := GetExecutor(ctx, r.db)

		if _, err := executor.ExecContext(ctx, r.insertSession,
			session.ID.String(),
			session.Reviewer,
			session.PendingLog,
			session.StartedAt,
			session.CompletedAt,
			session.ItemsReviewed,
			session.ItemsApproved,
			session.ItemsRejected,
			session.ItemsSkipped,
			session.AllowListAdded,
			session.LogTruncated,
		); err != nil {
			return fmt.Errorf("failed to insert review session: %w", err)
		}

		for _, d := range decisions {
			if _, err := executor.ExecContext(ctx, r.insertDecision,
				d.ID.String(),
				d.SessionID.String(),
				d.Position,
				d.ItemTimestamp,
				d.Text,
				d.Classification,
				d.RiskScore,
				string(d.Suggested),
				string(d.Decision),
				d.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert review decision %d: %w", d.Position, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("review session recorded",
		zap.String("backend", r.dialect.Name),
		zap.String("session_id", session.ID.String()),
		zap.Int("decisions", len(decisions)))
	return nil
}

// CountDecisions returns how many decisions were stored for a session
func (r *HistoryRepository) CountDecisions(ctx context.Context, sessionID uuid.UUID) (int, error) {
	if err := r.prepare(ctx); err != nil {
		return 0, fmt.Errorf("failed to prepare %s history store: %w", r.dialect.Name, err)
	}

	var count int
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, r.countDecisions, sessionID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count review decisions: %w", err)
	}
	return count, nil
}

// Close closes the underlying pool
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}
