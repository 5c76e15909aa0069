package postgres

import (
	"context"
	"database/sql"

	"github.com/upb/prompt-review/repositories/sqldb"
	"go.uber.org/zap"
)

// NewReviewHistoryRepository creates the postgres review-history ledger.
// The schema is created on the first write.
func NewReviewHistoryRepository(db *DB, logger *zap.Logger) *sqldb.HistoryRepository {
	return sqldb.NewHistoryRepository(db.DB, sqldb.Dialect{
		Name:        "postgres",
		Placeholder: sqldb.DollarPlaceholder,
		Prepare: func(ctx context.Context, _ *sql.DB) error {
			return db.InitHistorySchema(ctx)
		},
	}, logger)
}
