package matchdomain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func readyMatch() Match {
	return Match{
		ID:         "m1",
		EventType:  EventTypeLeague,
		EventID:    "e1",
		Status:     MatchStatusCompleted,
		ScoreState: ScoreStateOfficial,
		Locked:     true,
		SideA:      Side{PlayerIDs: []string{"p1"}, Names: []string{"Ana"}},
		SideB:      Side{PlayerIDs: []string{"p2"}, Names: []string{"Ben"}},
		Official: &OfficialResult{
			Games:       []GameScore{{11, 4}, {11, 6}},
			Winner:      SideA,
			FinalizedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Version:     1,
		},
		DUPR: SubmissionState{Eligible: true},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Match)
		want   Category
	}{
		{"ready", func(m *Match) {}, CategoryReadyForDUPR},
		{"submitted flag", func(m *Match) { m.DUPR.Submitted = true }, CategorySubmitted},
		{"submitted score state", func(m *Match) { m.ScoreState = ScoreStateSubmitted }, CategorySubmitted},
		{"submitted wins over error", func(m *Match) {
			m.DUPR.Submitted = true
			m.DUPR.LastError = "boom"
		}, CategorySubmitted},
		{"recorded error", func(m *Match) { m.DUPR.LastError = "rejected" }, CategoryFailed},
		{"needs correction", func(m *Match) { m.DUPR.NeedsCorrection = true }, CategoryBlocked},
		{"tbd side", func(m *Match) { m.SideB = Side{PlayerIDs: []string{"TBD"}} }, CategoryBlocked},
		{"bye named side", func(m *Match) { m.SideB.Names = []string{"Bye"} }, CategoryBlocked},
		{"empty side", func(m *Match) { m.SideA = Side{} }, CategoryBlocked},
		{"not eligible", func(m *Match) { m.DUPR.Eligible = false }, CategoryBlocked},
		{"not locked", func(m *Match) { m.Locked = false }, CategoryBlocked},
		{"not completed", func(m *Match) { m.Status = MatchStatusInProgress }, CategoryBlocked},
		{"signed proposal", func(m *Match) {
			m.Official = nil
			m.Proposal = &ScoreProposal{Status: ProposalStatusSigned}
		}, CategoryNeedsReview},
		{"disputed proposal", func(m *Match) {
			m.Official = nil
			m.Proposal = &ScoreProposal{Status: ProposalStatusDisputed}
		}, CategoryNeedsReview},
		{"proposed", func(m *Match) {
			m.Official = nil
			m.Proposal = &ScoreProposal{Status: ProposalStatusProposed}
		}, CategoryProposed},
		{"nothing recorded", func(m *Match) { m.Official = nil }, CategoryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := readyMatch()
			tt.mutate(&m)
			assert.Equal(t, tt.want, Classify(m))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	m := readyMatch()
	m.DUPR.LastError = "rejected"
	before := m

	first := Classify(m)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(m))
	}
	assert.Equal(t, before, m)
}

func TestEligibilityToggle(t *testing.T) {
	m := readyMatch()
	assert.Equal(t, ToggleState{Eligible: true}, EligibilityToggle(m))

	m.DUPR.Submitted = true
	assert.True(t, EligibilityToggle(m).Locked)

	m = readyMatch()
	m.DUPR.NeedsCorrection = true
	state := EligibilityToggle(m)
	assert.True(t, state.Locked)
	assert.NotEmpty(t, state.Reason)
}

func TestProposalStatus_CanTransition(t *testing.T) {
	assert.True(t, ProposalStatusProposed.CanTransition(ProposalStatusSigned))
	assert.True(t, ProposalStatusProposed.CanTransition(ProposalStatusDisputed))
	assert.False(t, ProposalStatusSigned.CanTransition(ProposalStatusProposed))
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid())
	}
	assert.False(t, Category("unknown").Valid())
}
