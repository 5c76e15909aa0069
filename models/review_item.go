package models

import "strings"

// Classification is the verdict the safety gateway attached to a prompt.
type Classification string

const (
	ClassificationSafe            Classification = "SAFE"
	ClassificationSafeWhitelisted Classification = "SAFE_WHITELISTED"
)

// IsBenign reports whether the gateway let the prompt through.
// Any value outside the SAFE family counts as blocked.
func (c Classification) IsBenign() bool {
	switch Classification(strings.ToUpper(strings.TrimSpace(string(c)))) {
	case ClassificationSafe, ClassificationSafeWhitelisted:
		return true
	}
	return false
}

// ReviewItem is one row of the pending-review log.
// Text is kept exactly as read; it is only escaped on output.
type ReviewItem struct {
	Timestamp      string         `json:"timestamp"`
	Text           string         `json:"text"`
	Classification Classification `json:"result"`
	RiskScore      int            `json:"threat_score"`
	Line           int            `json:"-"` // CSV record line, diagnostics only
}

// AllowListEntry is a record appended to the gateway allow-list.
type AllowListEntry struct {
	Text string `json:"text"`
	Uses int    `json:"uses"` // reserved for the gateway, always written as 0
}

// NewAllowListEntry creates an entry with the reserved counter at zero
func NewAllowListEntry(text string) AllowListEntry {
	return AllowListEntry{Text: text}
}
