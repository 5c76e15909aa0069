package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewSession is the ledger row describing one completed review run
type ReviewSession struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Reviewer       string    `json:"reviewer" db:"reviewer"`
	PendingLog     string    `json:"pending_log" db:"pending_log"`
	StartedAt      time.Time `json:"started_at" db:"started_at"`
	CompletedAt    time.Time `json:"completed_at" db:"completed_at"`
	ItemsReviewed  int       `json:"items_reviewed" db:"items_reviewed"`
	ItemsApproved  int       `json:"items_approved" db:"items_approved"`
	ItemsRejected  int       `json:"items_rejected" db:"items_rejected"`
	ItemsSkipped   int       `json:"items_skipped" db:"items_skipped"`
	AllowListAdded int       `json:"allowlist_added" db:"allowlist_added"`
	LogTruncated   bool      `json:"log_truncated" db:"log_truncated"`
}

// TableName returns the table name for the ReviewSession model
func (ReviewSession) TableName() string {
	return "review_sessions"
}

// ReviewDecisionRecord is the ledger row for one operator decision
type ReviewDecisionRecord struct {
	ID             uuid.UUID `json:"id" db:"id"`
	SessionID      uuid.UUID `json:"session_id" db:"session_id"`
	Position       int       `json:"position" db:"position"`
	ItemTimestamp  string    `json:"item_timestamp" db:"item_timestamp"`
	Text           string    `json:"text" db:"text"`
	Classification string    `json:"classification" db:"classification"`
	RiskScore      int       `json:"risk_score" db:"risk_score"`
	Suggested      Decision  `json:"suggested" db:"suggested"`
	Decision       Decision  `json:"decision" db:"decision"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the ReviewDecisionRecord model
func (ReviewDecisionRecord) TableName() string {
	return "review_decisions"
}

// NewReviewSession creates a ledger session from a finished outcome
func NewReviewSession(id uuid.UUID, reviewer, pendingLog string, startedAt time.Time, summary *CommitSummary) *ReviewSession {
	return &ReviewSession{
		ID:             id,
		Reviewer:       reviewer,
		PendingLog:     pendingLog,
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
		ItemsReviewed:  summary.Approved + summary.Rejected + summary.Skipped,
		ItemsApproved:  summary.Approved,
		ItemsRejected:  summary.Rejected,
		ItemsSkipped:   summary.Skipped,
		AllowListAdded: summary.AllowListAdded,
		LogTruncated:   summary.LogTruncated,
	}
}

// NewDecisionRecords converts an outcome into ledger rows, one per reviewed item
func NewDecisionRecords(sessionID uuid.UUID, o *ReviewOutcome, now time.Time) []*ReviewDecisionRecord {
	records := make([]*ReviewDecisionRecord, 0, len(o.Reviewed))
	for i, r := range o.Reviewed {
		records = append(records, &ReviewDecisionRecord{
			ID:             uuid.New(),
			SessionID:      sessionID,
			Position:       i + 1,
			ItemTimestamp:  r.Item.Timestamp,
			Text:           r.Item.Text,
			Classification: string(r.Item.Classification),
			RiskScore:      r.Item.RiskScore,
			Suggested:      r.Suggested,
			Decision:       r.Decision,
			CreatedAt:      now,
		})
	}
	return records
}
