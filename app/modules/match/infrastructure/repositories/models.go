package matchdb

import (
	"time"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/uptrace/bun"
)

// Match is the persisted form of a match. The rating-authority status block
// is flattened into dupr_* columns so it can be updated field by field.
type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID         string                      `bun:"id,pk"`
	EventType  matchdomain.EventType       `bun:"event_type,notnull"`
	EventID    string                      `bun:"event_id,notnull"`
	EventName  string                      `bun:"event_name,nullzero"`
	Status     matchdomain.MatchStatus     `bun:"status,notnull,default:'scheduled'"`
	ScoreState matchdomain.ScoreState      `bun:"score_state,notnull,default:'none'"`
	Locked     bool                        `bun:"locked,notnull,default:false"`
	PlayType   matchdomain.PlayType        `bun:"play_type,nullzero"`
	MatchDate  time.Time                   `bun:"match_date,nullzero"`
	SideA      matchdomain.Side            `bun:"side_a,type:jsonb,notnull"`
	SideB      matchdomain.Side            `bun:"side_b,type:jsonb,notnull"`
	Official   *matchdomain.OfficialResult `bun:"official,type:jsonb"`
	Proposal   *matchdomain.ScoreProposal  `bun:"proposal,type:jsonb"`
	Rules      *matchdomain.GameRules      `bun:"rules,type:jsonb"`

	DuprEligible            bool       `bun:"dupr_eligible,notnull,default:false"`
	DuprSubmitted           bool       `bun:"dupr_submitted,notnull,default:false"`
	DuprSubmissionID        string     `bun:"dupr_submission_id,nullzero"`
	DuprSubmittedAt         *time.Time `bun:"dupr_submitted_at"`
	DuprLastError           string     `bun:"dupr_last_error,notnull,default:''"`
	DuprPending             bool       `bun:"dupr_pending,notnull,default:false"`
	DuprBatchID             string     `bun:"dupr_batch_id,nullzero"`
	DuprRetryCount          int        `bun:"dupr_retry_count,notnull,default:0"`
	DuprNeedsCorrection     bool       `bun:"dupr_needs_correction,notnull,default:false"`
	DuprCorrectionSubmitted bool       `bun:"dupr_correction_submitted,notnull,default:false"`
	DuprLastAttemptAt       *time.Time `bun:"dupr_last_attempt_at"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// ToDomain converts the row into the domain model.
func (m *Match) ToDomain() *matchdomain.Match {
	return &matchdomain.Match{
		ID:         m.ID,
		EventType:  m.EventType,
		EventID:    m.EventID,
		EventName:  m.EventName,
		Status:     m.Status,
		ScoreState: m.ScoreState,
		Locked:     m.Locked,
		PlayType:   m.PlayType,
		MatchDate:  m.MatchDate,
		SideA:      m.SideA,
		SideB:      m.SideB,
		Official:   m.Official,
		Proposal:   m.Proposal,
		Rules:      m.Rules,
		DUPR: matchdomain.SubmissionState{
			Eligible:            m.DuprEligible,
			Submitted:           m.DuprSubmitted,
			SubmissionID:        m.DuprSubmissionID,
			SubmittedAt:         m.DuprSubmittedAt,
			LastError:           m.DuprLastError,
			Pending:             m.DuprPending,
			BatchID:             m.DuprBatchID,
			RetryCount:          m.DuprRetryCount,
			NeedsCorrection:     m.DuprNeedsCorrection,
			CorrectionSubmitted: m.DuprCorrectionSubmitted,
			LastAttemptAt:       m.DuprLastAttemptAt,
		},
	}
}

// FromDomain builds a row from the domain model.
func FromDomain(d *matchdomain.Match) *Match {
	return &Match{
		ID:                      d.ID,
		EventType:               d.EventType,
		EventID:                 d.EventID,
		EventName:               d.EventName,
		Status:                  d.Status,
		ScoreState:              d.ScoreState,
		Locked:                  d.Locked,
		PlayType:                d.PlayType,
		MatchDate:               d.MatchDate,
		SideA:                   d.SideA,
		SideB:                   d.SideB,
		Official:                d.Official,
		Proposal:                d.Proposal,
		Rules:                   d.Rules,
		DuprEligible:            d.DUPR.Eligible,
		DuprSubmitted:           d.DUPR.Submitted,
		DuprSubmissionID:        d.DUPR.SubmissionID,
		DuprSubmittedAt:         d.DUPR.SubmittedAt,
		DuprLastError:           d.DUPR.LastError,
		DuprPending:             d.DUPR.Pending,
		DuprBatchID:             d.DUPR.BatchID,
		DuprRetryCount:          d.DUPR.RetryCount,
		DuprNeedsCorrection:     d.DUPR.NeedsCorrection,
		DuprCorrectionSubmitted: d.DUPR.CorrectionSubmitted,
		DuprLastAttemptAt:       d.DUPR.LastAttemptAt,
	}
}

// EventRef identifies an event by type and id.
type EventRef struct {
	EventType matchdomain.EventType `bun:"event_type" json:"eventType"`
	EventID   string                `bun:"event_id" json:"eventId"`
}

// SubmissionUpdate lists the submission fields to change. Nil fields are left
// untouched so concurrent updates to unrelated columns never collide.
type SubmissionUpdate struct {
	Eligible            *bool
	Submitted           *bool
	SubmissionID        *string
	SubmittedAt         *time.Time
	LastError           *string
	Pending             *bool
	BatchID             *string
	RetryCount          *int
	NeedsCorrection     *bool
	CorrectionSubmitted *bool
	LastAttemptAt       *time.Time
	ScoreState          *matchdomain.ScoreState
}

// IsEmpty reports whether the update changes nothing.
func (u SubmissionUpdate) IsEmpty() bool {
	return u.Eligible == nil && u.Submitted == nil && u.SubmissionID == nil &&
		u.SubmittedAt == nil && u.LastError == nil && u.Pending == nil &&
		u.BatchID == nil && u.RetryCount == nil && u.NeedsCorrection == nil &&
		u.CorrectionSubmitted == nil && u.LastAttemptAt == nil && u.ScoreState == nil
}

// ResultUpdate stores a finalized official result.
type ResultUpdate struct {
	Official   matchdomain.OfficialResult
	Status     matchdomain.MatchStatus
	ScoreState matchdomain.ScoreState
	Submission SubmissionUpdate
}
