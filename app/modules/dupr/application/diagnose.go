package duprservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
)

// scrubbedKeys are response fields that may carry player identities.
var scrubbedKeys = map[string]bool{
	"player1": true,
	"player2": true,
	"players": true,
	"duprid":  true,
	"duprids": true,
	"teama":   true,
	"teamb":   true,
}

type stageTrace struct {
	report *DiagnosticReport
}

func (t *stageTrace) run(stage string, fn func() (string, error)) bool {
	start := time.Now()
	detail, err := fn()
	st := DiagnosticStage{Stage: stage, OK: err == nil, Detail: detail, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		st.Detail = err.Error()
		t.report.FailedStage = stage
	}
	t.report.Stages = append(t.report.Stages, st)
	return err == nil
}

// Diagnose traces one match through authentication, token exchange, load,
// conversion and submission. It stops at the first failing stage and never
// writes match or batch state. Player ids are logged, not returned.
func (s *SubmissionService) Diagnose(ctx context.Context, req DiagnoseRequest) *DiagnosticReport {
	t := &stageTrace{report: &DiagnosticReport{Stages: []DiagnosticStage{}}}
	logger := s.logger.With(attr.MatchID(req.MatchID), attr.ExtractCorrelationID(ctx))

	ok := t.run(StageAuth, func() (string, error) {
		if req.AuthError != nil {
			return "", fmt.Errorf("authentication failed: %w", req.AuthError)
		}
		if req.Caller == nil {
			return "", errors.New("authentication failed: no caller")
		}
		return "caller authenticated", nil
	})
	ok = ok && t.run(StagePermission, func() (string, error) {
		if !req.Caller.IsAdmin {
			return "", errors.New("admin role required")
		}
		return "admin", nil
	})

	var token string
	ok = ok && t.run(StageToken, func() (string, error) {
		var err error
		token, err = s.tokens.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("token exchange failed: %w", err)
		}
		return "token acquired", nil
	})

	var match *matchdomain.Match
	ok = ok && t.run(StageLoad, func() (string, error) {
		if req.MatchID == "" {
			return "", errors.New("matchId is required")
		}
		m, err := s.loadMatch(ctx, req.MatchID)
		if err != nil {
			return "", err
		}
		if m == nil {
			return "", errors.New("match not found")
		}
		t.report.Match = matchMeta(m)
		if (req.EventType != "" && m.EventType != req.EventType) || (req.EventID != "" && m.EventID != req.EventID) {
			return "", fmt.Errorf("match belongs to %s %s", m.EventType, m.EventID)
		}
		match = m
		return fmt.Sprintf("category %s", t.report.Match.Category), nil
	})

	var conv *Conversion
	ok = ok && t.run(StageConvert, func() (string, error) {
		c, err := s.converter.Convert(ctx, s.idb(), match, EventInfo{Type: match.EventType, ID: match.EventID, Name: match.EventName})
		if err != nil {
			return "", err
		}
		conv = c
		p := c.Payload
		t.report.Payload = &PayloadMeta{
			Identifier:  p.Identifier,
			Format:      p.Format,
			MatchSource: p.MatchSource,
			HasClubID:   p.ClubID != nil,
			GameCount:   p.GameCount(),
			Warnings:    c.Warnings,
		}
		logger.DebugContext(ctx, "Diagnostic payload players",
			attr.Strings("team_a", []string{p.TeamA.Player1, p.TeamA.Player2}),
			attr.Strings("team_b", []string{p.TeamB.Player1, p.TeamB.Player2}),
		)
		return fmt.Sprintf("%s payload with %d game(s)", p.Format, p.GameCount()), nil
	})

	ok = ok && t.run(StageSubmit, func() (string, error) {
		outcome := s.authority.SubmitMatch(ctx, token, conv.Payload)
		t.report.StatusCode = outcome.StatusCode
		t.report.Response = scrubResponse(outcome.RawResponse)
		if !outcome.Success {
			return "", errors.New(outcome.Error)
		}
		if outcome.Duplicate {
			return "accepted as duplicate", nil
		}
		return "accepted", nil
	})

	t.report.OK = ok
	logger.InfoContext(ctx, "Diagnostic trace finished",
		attr.Bool("ok", ok),
		attr.String("failed_stage", t.report.FailedStage),
	)
	return t.report
}

func matchMeta(m *matchdomain.Match) *MatchMeta {
	meta := &MatchMeta{
		ID:             m.ID,
		Status:         m.Status,
		ScoreState:     m.ScoreState,
		Category:       matchdomain.Classify(*m),
		Doubles:        m.IsDoubles(),
		SideASize:      len(m.SideA.PlayerIDs),
		SideBSize:      len(m.SideB.PlayerIDs),
		LinkedOnMatchA: countLinked(m.SideA),
		LinkedOnMatchB: countLinked(m.SideB),
	}
	if m.Official != nil {
		meta.GameCount = len(m.Official.Games)
	}
	return meta
}

func countLinked(side matchdomain.Side) int {
	n := 0
	for _, id := range side.DuprIDs {
		if strings.TrimSpace(id) != "" {
			n++
		}
	}
	return n
}

// scrubResponse drops identity fields from an Authority response. Non-JSON
// bodies are returned as a JSON string.
func scrubResponse(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return storablePayload(raw)
	}
	out, err := json.Marshal(scrub(v))
	if err != nil {
		return nil
	}
	return out
}

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if scrubbedKeys[strings.ToLower(k)] {
				delete(t, k)
				continue
			}
			t[k] = scrub(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = scrub(child)
		}
		return t
	}
	return v
}
