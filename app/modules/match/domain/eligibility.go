package matchdomain

// Category is a match's position in the submission lifecycle.
type Category string

const (
	CategoryNone         Category = "none"
	CategoryProposed     Category = "proposed"
	CategoryNeedsReview  Category = "needs_review"
	CategoryReadyForDUPR Category = "ready_for_dupr"
	CategorySubmitted    Category = "submitted"
	CategoryFailed       Category = "failed"
	CategoryBlocked      Category = "blocked"
)

// Categories lists every category in classifier order.
var Categories = []Category{
	CategorySubmitted,
	CategoryFailed,
	CategoryBlocked,
	CategoryReadyForDUPR,
	CategoryNeedsReview,
	CategoryProposed,
	CategoryNone,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Classify maps the persisted fields of a match to its category. The first
// matching rule wins. Classify is pure.
func Classify(m Match) Category {
	switch {
	case m.DUPR.Submitted || m.ScoreState == ScoreStateSubmitted:
		return CategorySubmitted
	case m.DUPR.LastError != "":
		return CategoryFailed
	case m.DUPR.NeedsCorrection:
		return CategoryBlocked
	case m.SideA.IsPlaceholder() || m.SideB.IsPlaceholder():
		return CategoryBlocked
	}

	if m.Official != nil {
		if m.DUPR.Eligible && m.Locked && m.Status == MatchStatusCompleted && m.ScoreState == ScoreStateOfficial {
			return CategoryReadyForDUPR
		}
		return CategoryBlocked
	}

	if m.Proposal != nil {
		switch m.Proposal.Status {
		case ProposalStatusSigned, ProposalStatusDisputed:
			return CategoryNeedsReview
		case ProposalStatusProposed:
			return CategoryProposed
		}
	}
	return CategoryNone
}

// ToggleState describes whether the eligible flag may be flipped now.
type ToggleState struct {
	Eligible bool   `json:"eligible"`
	Locked   bool   `json:"locked"`
	Reason   string `json:"reason,omitempty"`
}

// EligibilityToggle reports the current eligible flag and whether it is locked.
func EligibilityToggle(m Match) ToggleState {
	state := ToggleState{Eligible: m.DUPR.Eligible}
	switch {
	case m.DUPR.Submitted || m.ScoreState == ScoreStateSubmitted:
		state.Locked = true
		state.Reason = "match already submitted to DUPR"
	case m.DUPR.NeedsCorrection:
		state.Locked = true
		state.Reason = "match is awaiting a correction resubmission"
	}
	return state
}
