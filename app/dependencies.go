package app

import (
	"context"
	"fmt"
	"io"

	"github.com/upb/prompt-review/config"
	"github.com/upb/prompt-review/internal/console"
	"github.com/upb/prompt-review/internal/observability"
	"github.com/upb/prompt-review/repositories"
	"github.com/upb/prompt-review/repositories/csvstore"
	"github.com/upb/prompt-review/repositories/postgres"
	"github.com/upb/prompt-review/repositories/sqlite"
	"github.com/upb/prompt-review/services/audit"
	"github.com/upb/prompt-review/services/review"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Stores shared with the gateway
	PendingLog repositories.PendingLogStore
	AllowList  repositories.AllowListStore

	// Review history, nil when HISTORY_DRIVER is unset
	History repositories.ReviewHistoryRepository
	Audit   *audit.AuditService
}

// NewDependencies creates and wires up all application dependencies.
// Nothing is written to disk here.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStores(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := deps.initHistory(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize review history: %w", err)
	}

	logger.Debug("all dependencies initialized",
		zap.String("pending_log", deps.PendingLog.Location()),
		zap.String("allow_list", deps.AllowList.Location()),
		zap.Bool("history", deps.Audit.Enabled()))
	return deps, nil
}

// initStores creates the pending-log and allow-list stores
func (d *Dependencies) initStores(cfg *config.Config) error {
	pending, err := csvstore.NewPendingLog(cfg.Stores.PendingLogPath, d.Logger,
		csvstore.WithAtomicTruncate(cfg.Stores.AtomicTruncate))
	if err != nil {
		return err
	}

	allowList, err := csvstore.NewAllowList(cfg.Stores.AllowListPath, d.Logger)
	if err != nil {
		return err
	}

	d.PendingLog = pending
	d.AllowList = allowList
	return nil
}

// initHistory opens the configured ledger backend
func (d *Dependencies) initHistory(ctx context.Context, cfg *config.Config) error {
	if !cfg.HistoryEnabled() {
		d.Logger.Debug("review history disabled")
		d.Audit = audit.NewAuditService(nil, d.Logger, audit.DefaultWriteTimeout)
		return nil
	}

	switch cfg.History.Driver {
	case "sqlite3":
		repo, err := sqlite.NewReviewHistoryRepository(cfg.History.DSN, d.Logger)
		if err != nil {
			return err
		}
		d.History = repo
	case "postgres":
		db, err := postgres.NewDB(cfg.History, d.Logger)
		if err != nil {
			return err
		}
		if err := db.HealthCheck(ctx); err != nil {
			db.Close()
			return err
		}
		d.History = postgres.NewReviewHistoryRepository(db, d.Logger)
	default:
		return fmt.Errorf("unsupported history driver %q", cfg.History.Driver)
	}

	d.Audit = audit.NewAuditService(d.History, d.Logger, audit.DefaultWriteTimeout)
	if d.Audit.Enabled() {
		d.Logger.Info("review history enabled",
			zap.String("connection", cfg.History.LogString()))
	}
	return nil
}

// NewSession builds a review session talking to the operator over in/out
func (d *Dependencies) NewSession(in io.Reader, out io.Writer) *review.Session {
	return review.NewSession(review.Dependencies{
		PendingLog: d.PendingLog,
		AllowList:  d.AllowList,
		History:    d.Audit,
		Console:    console.New(in, out),
		Logger:     observability.NewContextLogger(d.Logger),
		Reviewer:   d.Config.Review.Reviewer,
	})
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error

	if d.Audit != nil {
		if err := d.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close review history: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
