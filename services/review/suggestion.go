package review

import "github.com/upb/prompt-review/models"

const (
	rationaleSafe    = "automated pipeline marked safe"
	rationaleBlocked = "automated pipeline blocked this"
)

// Suggestion is the advisory decision shown next to an item.
// It never changes what the operator may choose.
type Suggestion struct {
	Decision  models.Decision
	Rationale string
}

// Suggest derives the suggestion from the gateway verdict alone.
// The benign family suggests Approve, anything else suggests Reject.
func Suggest(item models.ReviewItem) Suggestion {
	if item.Classification.IsBenign() {
		return Suggestion{Decision: models.DecisionApprove, Rationale: rationaleSafe}
	}
	return Suggestion{Decision: models.DecisionReject, Rationale: rationaleBlocked}
}
