package matchservice

import (
	"context"
	"time"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
)

// Service is the organizer-facing match contract.
type Service interface {
	// GetStatus classifies a match and reports its eligibility toggle.
	GetStatus(ctx context.Context, matchID string) (*StatusView, error)
	// SetEligible flips the eligible flag unless the toggle is locked.
	SetEligible(ctx context.Context, matchID string, eligible bool) (*matchdomain.ToggleState, error)
	// FinalizeResult validates and stores an official result. Changing the
	// result of a submitted match schedules a correction.
	FinalizeResult(ctx context.Context, req FinalizeRequest) (*FinalizeResponse, error)
}

// StatusView is the pipeline view of a single match.
type StatusView struct {
	MatchID  string                  `json:"matchId"`
	Category matchdomain.Category    `json:"category"`
	Toggle   matchdomain.ToggleState `json:"toggle"`
	Error    string                  `json:"lastError,omitempty"`
}

// FinalizeRequest is an official result entered by an organizer.
type FinalizeRequest struct {
	MatchID string                  `json:"-"`
	Games   []matchdomain.GameScore `json:"games"`
	Winner  matchdomain.SideKey     `json:"winner,omitempty"`
}

// FinalizeResponse describes the stored official result.
type FinalizeResponse struct {
	MatchID         string               `json:"matchId"`
	Winner          matchdomain.SideKey  `json:"winner"`
	Version         int                  `json:"version"`
	FinalizedAt     time.Time            `json:"finalizedAt"`
	Warnings        []string             `json:"warnings"`
	NeedsCorrection bool                 `json:"needsCorrection"`
	Category        matchdomain.Category `json:"category"`
}
