package models

import "strings"

// Decision is the operator verdict for a single ReviewItem
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionSkip    Decision = "skip"
)

// ParseDecision maps operator input to a Decision. Single letters and full
// words are accepted in any case. There is no default: ok is false for
// anything else, including empty input.
func ParseDecision(input string) (Decision, bool) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "A", "APPROVE":
		return DecisionApprove, true
	case "R", "REJECT":
		return DecisionReject, true
	case "S", "SKIP":
		return DecisionSkip, true
	}
	return "", false
}

// IsValid checks if the decision is one of the known values
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionSkip:
		return true
	}
	return false
}

// ReviewedItem pairs an item with the suggestion shown and the decision taken.
type ReviewedItem struct {
	Item      ReviewItem
	Suggested Decision
	Decision  Decision
}

// ReviewOutcome is the ordered record of a session's decisions.
type ReviewOutcome struct {
	Reviewed []ReviewedItem
}

// Record appends a decision in review order
func (o *ReviewOutcome) Record(item ReviewItem, suggested, decision Decision) {
	o.Reviewed = append(o.Reviewed, ReviewedItem{Item: item, Suggested: suggested, Decision: decision})
}

// AcceptedTexts returns the texts of approved items in review order.
// Duplicates are kept.
func (o *ReviewOutcome) AcceptedTexts() []string {
	var texts []string
	for _, r := range o.Reviewed {
		if r.Decision == DecisionApprove {
			texts = append(texts, r.Item.Text)
		}
	}
	return texts
}

// Count returns how many items received the given decision
func (o *ReviewOutcome) Count(d Decision) int {
	n := 0
	for _, r := range o.Reviewed {
		if r.Decision == d {
			n++
		}
	}
	return n
}

// CommitSummary reports what a session changed
type CommitSummary struct {
	Approved        int
	Rejected        int
	Skipped         int
	AllowListAdded  int
	LogTruncated    bool
	HistoryRecorded bool
}

// NewCommitSummary seeds the decision counts from an outcome
func NewCommitSummary(o *ReviewOutcome) *CommitSummary {
	return &CommitSummary{
		Approved: o.Count(DecisionApprove),
		Rejected: o.Count(DecisionReject),
		Skipped:  o.Count(DecisionSkip),
	}
}
