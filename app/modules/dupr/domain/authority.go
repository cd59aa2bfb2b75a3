package duprdomain

import (
	"encoding/json"
	"errors"
	"time"
)

// SubmitOutcome is the classified result of one submission. Duplicate
// submissions are successes with a warning.
type SubmitOutcome struct {
	Success     bool            `json:"success"`
	ExternalID  string          `json:"externalId,omitempty"`
	Duplicate   bool            `json:"duplicate,omitempty"`
	Error       string          `json:"error,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	StatusCode  int             `json:"statusCode,omitempty"`
	RawResponse json.RawMessage `json:"rawResponse,omitempty"`
}

// PlayerRating is a rating lookup result for one player.
type PlayerRating struct {
	DuprID  string
	Name    string
	Singles *float64
	Doubles *float64
}

// RatingSource records which path last wrote a rating snapshot.
type RatingSource string

const (
	RatingSourceWebhook RatingSource = "webhook"
	RatingSourceSync    RatingSource = "sync"
)

// RatingSnapshot is the last-known rating of a player.
type RatingSnapshot struct {
	DuprID   string
	Singles  *float64
	Doubles  *float64
	Source   RatingSource
	SyncedAt time.Time
}

// WebhookEvent is a stored push, keyed by its dedupe key.
type WebhookEvent struct {
	DedupeKey       string
	EventType       string
	ClientID        string
	DuprID          string
	Payload         json.RawMessage
	Processed       bool
	ProcessingError string
	ReceivedAt      time.Time
	ProcessedAt     *time.Time
}

// ErrTokenUnavailable marks a failed credential exchange. It aborts a pass
// and is never recorded against an individual match.
var ErrTokenUnavailable = errors.New("token_unavailable")
