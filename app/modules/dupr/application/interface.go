package duprservice

import (
	"context"
	"encoding/json"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/google/uuid"
)

// Service is the submission pipeline contract.
type Service interface {
	// SubmitMatches queues the eligible matches of an event and processes the batch.
	SubmitMatches(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	// RetryFailed resubmits the matches of an event with a recorded error or a pending flag.
	RetryFailed(ctx context.Context, req RetryRequest) (*RetryResponse, error)
	// ProcessBatch runs one pass over a batch.
	ProcessBatch(ctx context.Context, batchID uuid.UUID) (*BatchSummary, error)
	// ProcessDueBatches picks up pending, due and stale batches.
	ProcessDueBatches(ctx context.Context) (*SweepSummary, error)
	// SweepReadyEvents submits every event holding ready matches.
	SweepReadyEvents(ctx context.Context) (*SweepSummary, error)
	// RunCorrectionSweep resubmits matches whose official result changed after submission.
	RunCorrectionSweep(ctx context.Context) (*CorrectionSummary, error)
	// RunRatingSync refreshes ratings of every linked player.
	RunRatingSync(ctx context.Context) (*SyncSummary, error)
	// IngestWebhook handles one Authority push. It never fails.
	IngestWebhook(ctx context.Context, raw []byte) WebhookOutcome
	// Diagnose traces a single match through the pipeline without changing it.
	Diagnose(ctx context.Context, req DiagnoseRequest) *DiagnosticReport
}

// TokenSource yields a bearer token for Authority calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authority is the outbound rating-authority client.
type Authority interface {
	SubmitMatch(ctx context.Context, token string, payload duprdomain.MatchPayload) duprdomain.SubmitOutcome
	LookupPlayers(ctx context.Context, token string, duprIDs []string) ([]duprdomain.PlayerRating, error)
	SubscribeRatingChanges(ctx context.Context, token string, duprIDs []string) error
}

// SubmitRequest asks for the submission of an event's matches. Without
// MatchIDs every ready match of the event is swept.
type SubmitRequest struct {
	EventType matchdomain.EventType `json:"eventType"`
	EventID   string                `json:"eventId"`
	EventName string                `json:"eventName,omitempty"`
	MatchIDs  []string              `json:"matchIds,omitempty"`
}

// IneligibleMatch names a match left out of a batch and why.
type IneligibleMatch struct {
	MatchID  string               `json:"matchId"`
	Category matchdomain.Category `json:"category,omitempty"`
	Reason   string               `json:"reason"`
}

// SubmitResponse summarizes a submission request.
type SubmitResponse struct {
	Success         bool              `json:"success"`
	BatchID         string            `json:"batchId,omitempty"`
	Message         string            `json:"message"`
	EligibleCount   int               `json:"eligibleCount"`
	IneligibleCount int               `json:"ineligibleCount"`
	SkippedCount    int               `json:"skippedCount"`
	SubmittedCount  int               `json:"submittedCount"`
	FailedCount     int               `json:"failedCount"`
	Ineligible      []IneligibleMatch `json:"ineligible,omitempty"`
	Queued          []IneligibleMatch `json:"queued,omitempty"`
}

// RetryRequest asks for a retry of an event's failed matches.
type RetryRequest struct {
	EventType matchdomain.EventType `json:"eventType"`
	EventID   string                `json:"eventId"`
}

// RetryResponse reports per-match outcome counts of a retry.
type RetryResponse struct {
	RetriedCount   int                      `json:"retriedCount"`
	SubmittedCount int                      `json:"submittedCount"`
	FailedCount    int                      `json:"failedCount"`
	SkippedCount   int                      `json:"skippedCount"`
	QueuedCount    int                      `json:"queuedCount"`
	BatchID        string                   `json:"batchId,omitempty"`
	Message        string                   `json:"message,omitempty"`
	Results        []duprdomain.MatchResult `json:"results,omitempty"`
}

// BatchSummary describes a batch after a pass.
type BatchSummary struct {
	BatchID     string                   `json:"batchId"`
	Status      duprdomain.BatchStatus   `json:"status"`
	Counts      duprdomain.Counts        `json:"counts"`
	RetryCount  int                      `json:"retryCount"`
	NextRetryAt *time.Time               `json:"nextRetryAt,omitempty"`
	Exhausted   bool                     `json:"exhausted"`
	Results     []duprdomain.MatchResult `json:"results"`
}

// SweepSummary reports a scheduled pass over many batches or events.
type SweepSummary struct {
	Picked    int `json:"picked"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// CorrectionSummary reports a correction sweep. Deferred corrections wait
// for their backoff; exhausted ones need manual attention.
type CorrectionSummary struct {
	Found       int `json:"found"`
	Resubmitted int `json:"resubmitted"`
	Failed      int `json:"failed"`
	Deferred    int `json:"deferred"`
	Exhausted   int `json:"exhausted"`
}

// SyncSummary reports a rating sync.
type SyncSummary struct {
	Players    int `json:"players"`
	Updated    int `json:"updated"`
	Subscribed int `json:"subscribed"`
	Errors     int `json:"errors"`
}

// WebhookOutcome describes what ingestion did with a push. The HTTP answer
// is always 200 regardless.
type WebhookOutcome struct {
	DedupeKey string `json:"dedupeKey"`
	EventType string `json:"eventType,omitempty"`
	Duplicate bool   `json:"duplicate"`
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// Caller is the authenticated principal behind a diagnostic request.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// DiagnoseRequest identifies the match to trace. AuthError is the failure of
// authenticating the caller, if any.
type DiagnoseRequest struct {
	MatchID   string                `json:"matchId"`
	EventType matchdomain.EventType `json:"eventType"`
	EventID   string                `json:"eventId"`
	Caller    *Caller               `json:"-"`
	AuthError error                 `json:"-"`
}

// Stage names of a diagnostic trace.
const (
	StageAuth       = "auth"
	StagePermission = "permission"
	StageToken      = "token"
	StageLoad       = "load"
	StageConvert    = "convert"
	StageSubmit     = "submit"
)

// DiagnosticStage is one step of a trace.
type DiagnosticStage struct {
	Stage      string `json:"stage"`
	OK         bool   `json:"ok"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// MatchMeta is the sanitized view of a traced match. It carries no player
// or rating-authority ids.
type MatchMeta struct {
	ID             string                  `json:"id"`
	Status         matchdomain.MatchStatus `json:"status"`
	ScoreState     matchdomain.ScoreState  `json:"scoreState"`
	Category       matchdomain.Category    `json:"category"`
	GameCount      int                     `json:"gameCount"`
	Doubles        bool                    `json:"doubles"`
	SideASize      int                     `json:"sideASize"`
	SideBSize      int                     `json:"sideBSize"`
	LinkedOnMatchA int                     `json:"linkedOnMatchA"`
	LinkedOnMatchB int                     `json:"linkedOnMatchB"`
}

// PayloadMeta is the sanitized view of a built payload.
type PayloadMeta struct {
	Identifier  string                 `json:"identifier"`
	Format      duprdomain.Format      `json:"format"`
	MatchSource duprdomain.MatchSource `json:"matchSource"`
	HasClubID   bool                   `json:"hasClubId"`
	GameCount   int                    `json:"gameCount"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// DiagnosticReport is the full trace of a diagnostic run.
type DiagnosticReport struct {
	OK          bool              `json:"ok"`
	FailedStage string            `json:"failedStage,omitempty"`
	Stages      []DiagnosticStage `json:"stages"`
	Match       *MatchMeta        `json:"match,omitempty"`
	Payload     *PayloadMeta      `json:"payload,omitempty"`
	Response    json.RawMessage   `json:"response,omitempty"`
	StatusCode  int               `json:"statusCode,omitempty"`
}
