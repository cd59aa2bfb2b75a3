package matchdomain

import (
	"strings"
	"time"
)

// EventType identifies the kind of club event a match belongs to.
type EventType string

const (
	EventTypeLeague     EventType = "league"
	EventTypeTournament EventType = "tournament"
	EventTypeLadder     EventType = "ladder"
	EventTypeOpenPlay   EventType = "open_play"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeLeague, EventTypeTournament, EventTypeLadder, EventTypeOpenPlay:
		return true
	}
	return false
}

// MatchStatus is the scheduling lifecycle of a match.
type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// ScoreState tracks where the score of a match is in its workflow.
type ScoreState string

const (
	ScoreStateNone      ScoreState = "none"
	ScoreStateProposed  ScoreState = "proposed"
	ScoreStateSigned    ScoreState = "signed"
	ScoreStateDisputed  ScoreState = "disputed"
	ScoreStateOfficial  ScoreState = "official"
	ScoreStateSubmitted ScoreState = "submitted"
)

// ProposalStatus is the workflow status of a pre-official score proposal.
type ProposalStatus string

const (
	ProposalStatusProposed ProposalStatus = "proposed"
	ProposalStatusSigned   ProposalStatus = "signed"
	ProposalStatusDisputed ProposalStatus = "disputed"
)

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusProposed: {ProposalStatusSigned, ProposalStatusDisputed},
	ProposalStatusDisputed: {ProposalStatusProposed},
	ProposalStatusSigned:   {ProposalStatusDisputed},
}

// CanTransition reports whether a proposal may move from s to next.
func (s ProposalStatus) CanTransition(next ProposalStatus) bool {
	for _, allowed := range proposalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PlayType overrides the singles/doubles inference from side sizes.
type PlayType string

const (
	PlayTypeUnset   PlayType = ""
	PlayTypeSingles PlayType = "singles"
	PlayTypeDoubles PlayType = "doubles"
)

// SideKey names one of the two sides of a match.
type SideKey string

const (
	SideA SideKey = "A"
	SideB SideKey = "B"
)

// GameScore is the score of a single game, from side A's and side B's view.
type GameScore struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Winner returns the side that won the game, or "" for a tie.
func (g GameScore) Winner() SideKey {
	switch {
	case g.A > g.B:
		return SideA
	case g.B > g.A:
		return SideB
	}
	return ""
}

// Side is one team in a match. DuprIDs is the denormalized copy of the
// players' rating-authority ids and may be shorter than PlayerIDs.
type Side struct {
	PlayerIDs []string `json:"playerIds"`
	DuprIDs   []string `json:"duprIds,omitempty"`
	Names     []string `json:"names,omitempty"`
}

// placeholderTokens mark sides whose participants are not decided yet.
var placeholderTokens = []string{"tbd", "bye", "tba"}

// IsPlaceholder reports whether the side has no real participants yet,
// for example an unresolved bracket slot.
func (s Side) IsPlaceholder() bool {
	if len(s.PlayerIDs) == 0 {
		return true
	}
	for _, values := range [][]string{s.PlayerIDs, s.Names} {
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				return true
			}
			for _, token := range placeholderTokens {
				if v == token || strings.HasPrefix(v, token+" ") || strings.HasPrefix(v, token+"-") {
					return true
				}
			}
		}
	}
	return false
}

// OfficialResult is the finalized result of a match.
type OfficialResult struct {
	Games       []GameScore `json:"games"`
	Winner      SideKey     `json:"winner"`
	FinalizedAt time.Time   `json:"finalizedAt"`
	Version     int         `json:"version"`
}

// ScoreProposal is a player-entered score awaiting confirmation.
type ScoreProposal struct {
	Games      []GameScore    `json:"games"`
	Status     ProposalStatus `json:"status"`
	ProposedBy string         `json:"proposedBy,omitempty"`
}

// SubmissionState is the rating-authority status block stored on a match.
type SubmissionState struct {
	Eligible            bool       `json:"eligible"`
	Submitted           bool       `json:"submitted"`
	SubmissionID        string     `json:"submissionId,omitempty"`
	SubmittedAt         *time.Time `json:"submittedAt,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	Pending             bool       `json:"pending"`
	BatchID             string     `json:"batchId,omitempty"`
	RetryCount          int        `json:"retryCount"`
	NeedsCorrection     bool       `json:"needsCorrection"`
	CorrectionSubmitted bool       `json:"correctionSubmitted"`
	LastAttemptAt       *time.Time `json:"lastAttemptAt,omitempty"`
}

// Match is the unit of work for result submission.
type Match struct {
	ID         string
	EventType  EventType
	EventID    string
	EventName  string
	Status     MatchStatus
	ScoreState ScoreState
	Locked     bool
	PlayType   PlayType
	MatchDate  time.Time
	SideA      Side
	SideB      Side
	Official   *OfficialResult
	Proposal   *ScoreProposal
	Rules      *GameRules
	DUPR       SubmissionState
}

// IsDoubles reports whether the match is played two-a-side.
func (m Match) IsDoubles() bool {
	return m.PlayType == PlayTypeDoubles || len(m.SideA.PlayerIDs) > 1 || len(m.SideB.PlayerIDs) > 1
}

// PlayersPerSide is 2 for doubles and 1 for singles.
func (m Match) PlayersPerSide() int {
	if m.IsDoubles() {
		return 2
	}
	return 1
}
