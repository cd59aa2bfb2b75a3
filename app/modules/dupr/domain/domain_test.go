package duprdomain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionIdentifier_Stable(t *testing.T) {
	first := SubmissionIdentifier("league", "spring-2026", "m-17")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, SubmissionIdentifier("league", "spring-2026", "m-17"))
	}
	assert.Equal(t, "league_spring-2026_m-17", first)
	assert.NotEqual(t, first, SubmissionIdentifier("league", "spring-2026", "m-18"))
}

func TestSubmissionIdentifier_LongInputsAreHashed(t *testing.T) {
	eventID := strings.Repeat("e", 40)
	matchID := strings.Repeat("m", 40)

	id := SubmissionIdentifier("tournament", eventID, matchID)
	assert.LessOrEqual(t, len(id), MaxIdentifierLength)
	assert.True(t, strings.HasPrefix(id, "tournament_"))
	assert.Equal(t, id, SubmissionIdentifier("tournament", eventID, matchID))
}

func TestSubmissionIdentifier_SeparatorInIDs(t *testing.T) {
	a := SubmissionIdentifier("league", "x_1", "2")
	b := SubmissionIdentifier("league", "x", "1_2")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, SubmissionIdentifier("league", "x_1_2", ""))
	assert.Equal(t, a, SubmissionIdentifier("league", "x_1", "2"))
	assert.LessOrEqual(t, len(a), MaxIdentifierLength)

	// A hashed identifier never collides with a readable one.
	assert.NotEqual(t, SubmissionIdentifier("league", "x", "1"), SubmissionIdentifier("league", "x_", "1"))
	assert.Equal(t, "open_play_spring_m1", SubmissionIdentifier("open_play", "spring", "m1"))
	assert.NotEqual(t, SubmissionIdentifier("open_play", "spring", "m1"), SubmissionIdentifier("open_play", "spring_m1", ""))
}

func TestBatch_Live(t *testing.T) {
	next := time.Date(2026, 5, 9, 14, 1, 0, 0, time.UTC)
	cases := []struct {
		name  string
		batch Batch
		want  bool
	}{
		{"pending", Batch{Status: BatchStatusPending}, true},
		{"processing", Batch{Status: BatchStatusProcessing}, true},
		{"retry scheduled", Batch{Status: BatchStatusPartialFailure, NextRetryAt: &next}, true},
		{"retries exhausted", Batch{Status: BatchStatusPartialFailure}, false},
		{"completed", Batch{Status: BatchStatusCompleted}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.batch.Live())
		})
	}
}

func TestTeam_MarshalJSON(t *testing.T) {
	singles, err := json.Marshal(Team{Player1: "D1", Games: []int{11, 7}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"player1":"D1","game1":11,"game2":7}`, string(singles))

	doubles, err := json.Marshal(Team{Player1: "D1", Player2: "D2", Games: []int{9}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"player1":"D1","player2":"D2","game1":9}`, string(doubles))
}

func TestMatchPayload_PartnerOmitsClubID(t *testing.T) {
	p := MatchPayload{Identifier: "x", MatchSource: MatchSourcePartner}
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	_, present := fields["clubId"]
	assert.False(t, present)

	club := int64(42)
	p.MatchSource = MatchSourceClub
	p.ClubID = &club
	raw, err = json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"clubId":42`)
}

func TestBatchStatus_Transitions(t *testing.T) {
	assert.True(t, BatchStatusPending.CanTransition(BatchStatusProcessing))
	assert.True(t, BatchStatusProcessing.CanTransition(BatchStatusCompleted))
	assert.True(t, BatchStatusProcessing.CanTransition(BatchStatusPartialFailure))
	assert.True(t, BatchStatusPartialFailure.CanTransition(BatchStatusProcessing))
	assert.False(t, BatchStatusCompleted.CanTransition(BatchStatusProcessing))
	assert.False(t, BatchStatusPending.CanTransition(BatchStatusCompleted))
	assert.False(t, BatchStatus("stuck").Valid())
}

func TestRetryPolicy_NextRetryAt(t *testing.T) {
	p := DefaultRetryPolicy()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(time.Minute), *p.NextRetryAt(0, now))
	assert.Equal(t, now.Add(2*time.Minute), *p.NextRetryAt(1, now))
	assert.Equal(t, now.Add(3*time.Minute), *p.NextRetryAt(2, now))
	assert.Nil(t, p.NextRetryAt(3, now))
	assert.True(t, p.Exhausted(3))

	long := RetryPolicy{Backoff: []time.Duration{time.Minute}, MaxRetries: 5}
	assert.Equal(t, now.Add(time.Minute), *long.NextRetryAt(4, now))
}

func TestBatch_MergeResultsAndTally(t *testing.T) {
	b := &Batch{
		ID:       uuid.New(),
		MatchIDs: []string{"a", "b", "c"},
		Results: []MatchResult{
			{MatchID: "a", Success: true, ExternalID: "1"},
			{MatchID: "b", Error: "rejected"},
		},
	}
	b.MergeResults([]MatchResult{
		{MatchID: "b", Success: true, Duplicate: true},
		{MatchID: "c", Skipped: true},
	})

	assert.Equal(t, []string{"a", "b", "c"}, []string{b.Results[0].MatchID, b.Results[1].MatchID, b.Results[2].MatchID})
	assert.Equal(t, Counts{Submitted: 2, Skipped: 1, Duplicate: 1}, Tally(b.Results))
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, b.Succeeded())
}

func TestDedupeKey(t *testing.T) {
	body := []byte(`{"event":"RATING","clientId":123,"message":{"duprId":"ABC","name":"Ana","rating":{"singles":"4.50","doubles":3.9,"matchId":77}}}`)
	p, err := ParseWebhook(body)
	require.NoError(t, err)
	key := DedupeKey(p, body)
	assert.True(t, strings.HasPrefix(key, "n:"))

	reordered := []byte(`{"message":{"rating":{"matchId":"77","doubles":"3.90","singles":4.5},"name":"Other","duprId":"ABC"},"clientId":"123","event":"rating"}`)
	p2, err := ParseWebhook(reordered)
	require.NoError(t, err)
	assert.Equal(t, key, DedupeKey(p2, reordered))

	changed := []byte(`{"event":"RATING","clientId":123,"message":{"duprId":"ABC","rating":{"singles":"4.60","doubles":3.9,"matchId":77}}}`)
	p3, err := ParseWebhook(changed)
	require.NoError(t, err)
	assert.NotEqual(t, key, DedupeKey(p3, changed))
}

func TestDedupeKey_FallsBackToRawBody(t *testing.T) {
	body := []byte(`{"unexpected":{"shape":true}}`)
	p, err := ParseWebhook(body)
	require.NoError(t, err)
	key := DedupeKey(p, body)
	assert.True(t, strings.HasPrefix(key, "r:"))
	assert.Equal(t, key, DedupeKey(p, body))
	assert.NotEqual(t, key, DedupeKey(p, []byte(`{"unexpected":{"shape":false}}`)))

	garbage := []byte(`not json`)
	gp, err := ParseWebhook(garbage)
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(DedupeKey(gp, garbage), "r:"))
}

func TestFlexString_Float(t *testing.T) {
	assert.Nil(t, FlexString("NR").Float())
	assert.Nil(t, FlexString("").Float())
	assert.InDelta(t, 4.25, *FlexString("4.25").Float(), 1e-9)
}
