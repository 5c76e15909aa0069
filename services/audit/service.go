// Package audit records completed review sessions in the review-history ledger.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/prompt-review/models"
	"github.com/upb/prompt-review/repositories"
	"github.com/upb/prompt-review/services"
	"go.uber.org/zap"
)

// DefaultWriteTimeout bounds a single ledger write
const DefaultWriteTimeout = 5 * time.Second

// SessionRecord is everything the ledger needs about one finished session
type SessionRecord struct {
	ID         uuid.UUID
	Reviewer   string
	PendingLog string
	StartedAt  time.Time
	Outcome    *models.ReviewOutcome
	Summary    *models.CommitSummary
}

// AuditService writes review sessions to the history repository.
// A nil repository disables the ledger.
type AuditService struct {
	historyRepo  repositories.ReviewHistoryRepository
	logger       *zap.Logger
	writeTimeout time.Duration
}

// NewAuditService creates a new AuditService instance
func NewAuditService(historyRepo repositories.ReviewHistoryRepository, logger *zap.Logger, writeTimeout time.Duration) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &AuditService{
		historyRepo:  historyRepo,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// Enabled reports whether sessions are recorded
func (s *AuditService) Enabled() bool {
	return s != nil && s.historyRepo != nil
}

// RecordSession stores the session and its decisions in one transaction.
// The write ignores ctx cancellation and is bounded by the write timeout.
func (s *AuditService) RecordSession(ctx context.Context, rec SessionRecord) error {
	if !s.Enabled() {
		return nil
	}
	if rec.Outcome == nil || rec.Summary == nil {
		return services.WrapInternal("cannot record review session", fmt.Errorf("incomplete session record"))
	}
	for i, r := range rec.Outcome.Reviewed {
		if !r.Decision.IsValid() {
			return services.WrapInternal("cannot record review session",
				fmt.Errorf("item %d has unknown decision %q", i+1, r.Decision))
		}
	}

	session := models.NewReviewSession(rec.ID, rec.Reviewer, rec.PendingLog, rec.StartedAt, rec.Summary)
	decisions := models.NewDecisionRecords(rec.ID, rec.Outcome, session.CompletedAt)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.historyRepo.RecordSession(writeCtx, session, decisions); err != nil {
		s.logger.Error("failed to record review session",
			zap.String("session_id", rec.ID.String()),
			zap.Error(err))
		return services.NewDomainError(services.ErrorTypeExternal, "review history unavailable", err).
			WithDetail("session_id", rec.ID.String())
	}

	s.logger.Info("review session recorded",
		zap.String("session_id", rec.ID.String()),
		zap.String("reviewer", rec.Reviewer),
		zap.Int("decisions", len(decisions)))
	return nil
}

// Close releases the history repository
func (s *AuditService) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.historyRepo.Close()
}
