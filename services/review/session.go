// Package review runs the operator review session: present each pending
// prompt, collect a decision, then commit approvals to the allow-list.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/prompt-review/internal/console"
	"github.com/upb/prompt-review/internal/observability"
	"github.com/upb/prompt-review/internal/shared"
	"github.com/upb/prompt-review/models"
	"github.com/upb/prompt-review/repositories"
	"github.com/upb/prompt-review/services"
	"github.com/upb/prompt-review/services/audit"
	"go.uber.org/zap"
)

// State is the session lifecycle state
type State string

const (
	StateNotStarted State = "not_started"
	StateReviewing  State = "reviewing"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// transitions lists the allowed target states per source state
var transitions = map[State][]State{
	StateNotStarted: {StateReviewing, StateDone, StateAborted},
	StateReviewing:  {StateCommitting, StateAborted},
	StateCommitting: {StateDone, StateAborted},
}

// previewRunes is how much of an approved text is echoed after the append
const previewRunes = 60

// HistoryRecorder persists finished sessions
type HistoryRecorder interface {
	Enabled() bool
	RecordSession(ctx context.Context, rec audit.SessionRecord) error
}

// Dependencies holds what a Session needs
type Dependencies struct {
	PendingLog repositories.PendingLogStore
	AllowList  repositories.AllowListStore
	History    HistoryRecorder
	Console    *console.Console
	Logger     observability.Logger
	Reviewer   string
}

// Session is a single, single-use review run
type Session struct {
	id        uuid.UUID
	pending   repositories.PendingLogStore
	allowList repositories.AllowListStore
	history   HistoryRecorder
	console   *console.Console
	logger    observability.Logger
	reviewer  string

	state     State
	startedAt time.Time
	outcome   models.ReviewOutcome
}

// NewSession creates a session in StateNotStarted
func NewSession(deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewContextLogger(nil)
	}
	return &Session{
		id:        uuid.New(),
		pending:   deps.PendingLog,
		allowList: deps.AllowList,
		history:   deps.History,
		console:   deps.Console,
		logger:    logger,
		reviewer:  deps.Reviewer,
		state:     StateNotStarted,
	}
}

// ID returns the session identifier used in logs and history
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Outcome returns the decisions recorded so far
func (s *Session) Outcome() models.ReviewOutcome {
	return s.outcome
}

func (s *Session) transition(ctx context.Context, to State) error {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.logger.Debug(ctx, "session state changed",
				zap.String("from", string(s.state)),
				zap.String("to", string(to)))
			s.state = to
			return nil
		}
	}
	return services.NewDomainError(services.ErrorTypeInternal, "invalid session state transition", nil).
		WithDetail("from", string(s.state)).
		WithDetail("to", string(to))
}

// Run loads the pending log, reviews every item and commits.
//
// A missing or empty log returns the not-found or empty error after a notice,
// with nothing written. A malformed log returns its validation error before
// any prompt. An interrupt during review returns services.ErrInterrupted with
// nothing written.
func (s *Session) Run(ctx context.Context) (*models.CommitSummary, error) {
	if s.state != StateNotStarted {
		return nil, services.NewDomainError(services.ErrorTypeInternal, "session already run", nil)
	}
	defer s.console.Close()
	s.startedAt = time.Now()
	ctx = shared.WithSessionID(ctx, s.id.String())
	ctx = shared.WithReviewer(ctx, s.reviewer)

	s.console.Title("PROMPT REVIEW - allow-list approval")

	items, err := s.pending.Load(ctx)
	if err != nil {
		return nil, s.loadFailed(ctx, err)
	}

	if err := s.transition(ctx, StateReviewing); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "review started",
		zap.String("pending_log", s.pending.Location()),
		zap.Int("items", len(items)))
	s.console.Blank()
	s.console.Heading(fmt.Sprintf("Found %d prompt(s) to review", len(items)))

	for i, item := range items {
		if _, err := s.reviewOne(ctx, i+1, len(items), item); err != nil {
			s.abort(ctx, err)
			return nil, err
		}
	}

	if err := s.transition(ctx, StateCommitting); err != nil {
		return nil, err
	}
	summary, err := s.commit(ctx)
	if err != nil {
		s.abort(ctx, err)
		return summary, err
	}

	if err := s.transition(ctx, StateDone); err != nil {
		return summary, err
	}
	s.logger.Info(ctx, "review completed",
		zap.Int("approved", summary.Approved),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("log_truncated", summary.LogTruncated))
	return summary, nil
}

func (s *Session) loadFailed(ctx context.Context, err error) error {
	switch {
	case services.IsNotFoundError(err):
		s.console.Blank()
		s.console.Warn(fmt.Sprintf("No pending log found: %s", s.pending.Location()))
		s.console.Info("The gateway has not logged any prompts yet.")
	case services.IsEmptyError(err):
		s.console.Blank()
		s.console.Success("No new prompts to review.")
	default:
		s.abort(ctx, err)
		return err
	}

	s.logger.Info(ctx, "nothing to review", zap.String("reason", string(services.GetErrorType(err))))
	if tErr := s.transition(ctx, StateDone); tErr != nil {
		return tErr
	}
	return err
}

func (s *Session) abort(ctx context.Context, cause error) {
	if s.state == StateDone || s.state == StateAborted {
		return
	}
	if err := s.transition(ctx, StateAborted); err != nil {
		s.logger.Error(ctx, "failed to abort session", zap.Error(err))
		return
	}
	s.logger.Warn(ctx, "review aborted",
		zap.Int("decided", len(s.outcome.Reviewed)),
		zap.Error(cause))
}

// reviewOne shows one item and loops until the operator gives a valid decision
func (s *Session) reviewOne(ctx context.Context, index, total int, item models.ReviewItem) (models.Decision, error) {
	suggestion := Suggest(item)

	s.console.Blank()
	s.console.Rule("─")
	s.console.Heading(fmt.Sprintf("Prompt #%d/%d", index, total))
	s.console.Rule("─")
	s.console.Field("Timestamp", item.Timestamp)
	s.console.Field("Prompt", `"`+item.Text+`"`)
	s.console.Field("Gateway result", string(item.Classification))
	s.console.Field("Threat score", fmt.Sprintf("%d/100", item.RiskScore))
	s.console.Blank()
	s.console.Field("Suggestion", fmt.Sprintf("%s (%s)", strings.ToUpper(string(suggestion.Decision)), suggestion.Rationale))

	for {
		s.console.Blank()
		answer, err := s.console.Prompt(ctx, "Your decision [A]pprove / [R]eject / [S]kip: ")
		if err != nil {
			return "", err
		}

		decision, ok := models.ParseDecision(answer)
		if !ok {
			s.console.Warn("Invalid input. Use A, R, or S")
			continue
		}

		switch decision {
		case models.DecisionApprove:
			s.console.Success("Approved - will be added to the allow-list")
		case models.DecisionReject:
			s.console.Info("Rejected - will not be allow-listed")
		case models.DecisionSkip:
			s.console.Info("Skipped - not added to the allow-list")
		}

		s.outcome.Record(item, suggestion.Decision, decision)
		s.logger.Debug(ctx, "decision recorded",
			zap.Int("position", index),
			zap.Int("line", item.Line),
			zap.String("suggested", string(suggestion.Decision)),
			zap.String("decision", string(decision)))
		return decision, nil
	}
}

// commit appends approvals, asks about truncation and records history.
// An interrupt at the truncation question keeps the log and returns the
// summary with services.ErrInterrupted.
func (s *Session) commit(ctx context.Context) (*models.CommitSummary, error) {
	summary := models.NewCommitSummary(&s.outcome)
	accepted := s.outcome.AcceptedTexts()

	s.console.Blank()
	if len(accepted) == 0 {
		s.console.Warn("No prompts approved")
	} else {
		s.console.Rule("=")
		s.console.Heading(fmt.Sprintf("Adding %d approved prompt(s) to the allow-list...", len(accepted)))
		s.console.Rule("=")

		entries := make([]models.AllowListEntry, 0, len(accepted))
		for _, text := range accepted {
			entries = append(entries, models.NewAllowListEntry(text))
		}
		added, err := s.allowList.Append(ctx, entries)
		if err != nil {
			return nil, err
		}
		summary.AllowListAdded = added

		for _, text := range accepted {
			s.console.Success(`Added: "` + preview(text) + `"`)
		}
		s.console.Blank()
		s.console.Success("Allow-list updated. Reload the gateway to pick up the new entries.")
	}

	s.console.Blank()
	s.console.Rule("=")
	answer, err := s.console.Prompt(ctx, "Clear reviewed prompts from log? [Y/n]: ")
	if err != nil {
		s.console.Blank()
		s.console.Info("Log kept for records")
		s.recordHistory(ctx, summary)
		return summary, err
	}

	var truncateErr error
	if ShouldTruncate(answer) {
		if truncateErr = s.pending.Truncate(ctx); truncateErr != nil {
			s.logger.Error(ctx, "pending log not cleared", zap.Error(truncateErr))
			s.console.Error("Pending log could not be cleared; the allow-list change stands")
		} else {
			summary.LogTruncated = true
			s.console.Success("Pending log cleared")
		}
	} else {
		s.console.Info("Log kept for records")
	}

	s.recordHistory(ctx, summary)
	s.printSummary(summary)
	return summary, truncateErr
}

func (s *Session) recordHistory(ctx context.Context, summary *models.CommitSummary) {
	if s.history == nil || !s.history.Enabled() {
		return
	}
	err := s.history.RecordSession(ctx, audit.SessionRecord{
		ID:         s.id,
		Reviewer:   s.reviewer,
		PendingLog: s.pending.Location(),
		StartedAt:  s.startedAt,
		Outcome:    &s.outcome,
		Summary:    summary,
	})
	if err != nil {
		s.logger.Warn(ctx, "review history not recorded", zap.Error(err))
		s.console.Warn("Review history could not be recorded; the allow-list change stands")
		return
	}
	summary.HistoryRecorded = true
}

func (s *Session) printSummary(summary *models.CommitSummary) {
	s.console.Blank()
	s.console.Rule("=")
	s.console.Heading("REVIEW COMPLETE")
	s.console.Field("Approved", fmt.Sprint(summary.Approved))
	s.console.Field("Rejected", fmt.Sprint(summary.Rejected))
	s.console.Field("Skipped", fmt.Sprint(summary.Skipped))
	s.console.Field("Added to allow-list", fmt.Sprint(summary.AllowListAdded))
	if summary.HistoryRecorded {
		s.console.Field("Session", s.id.String())
	}
	s.console.Rule("=")
}

// ShouldTruncate reads the answer to the truncation question. Only an
// explicit no keeps the log; empty input means yes.
func ShouldTruncate(answer string) bool {
	switch strings.ToUpper(strings.TrimSpace(answer)) {
	case "N", "NO":
		return false
	}
	return true
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
