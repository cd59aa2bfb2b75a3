package duprdb

import (
	"encoding/json"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubmissionBatch is the persisted form of a submission batch.
type SubmissionBatch struct {
	bun.BaseModel `bun:"table:dupr_submission_batches,alias:sb"`

	ID          uuid.UUID                `bun:"id,pk,type:uuid"`
	EventType   string                   `bun:"event_type,notnull"`
	EventID     string                   `bun:"event_id,notnull"`
	EventName   string                   `bun:"event_name,nullzero"`
	Status      duprdomain.BatchStatus   `bun:"status,notnull"`
	MatchIDs    []string                 `bun:"match_ids,type:jsonb,notnull"`
	Results     []duprdomain.MatchResult `bun:"results,type:jsonb,notnull"`
	RetryCount  int                      `bun:"retry_count,notnull,default:0"`
	NextRetryAt *time.Time               `bun:"next_retry_at"`
	LastError   string                   `bun:"last_error,notnull,default:''"`
	StartedAt   *time.Time               `bun:"started_at"`
	CreatedAt   time.Time                `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time                `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (b *SubmissionBatch) toDomain() *duprdomain.Batch {
	return &duprdomain.Batch{
		ID:          b.ID,
		EventType:   b.EventType,
		EventID:     b.EventID,
		EventName:   b.EventName,
		Status:      b.Status,
		MatchIDs:    b.MatchIDs,
		Results:     b.Results,
		RetryCount:  b.RetryCount,
		NextRetryAt: b.NextRetryAt,
		LastError:   b.LastError,
		StartedAt:   b.StartedAt,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func batchFromDomain(b *duprdomain.Batch) *SubmissionBatch {
	results := b.Results
	if results == nil {
		results = []duprdomain.MatchResult{}
	}
	return &SubmissionBatch{
		ID:          b.ID,
		EventType:   b.EventType,
		EventID:     b.EventID,
		EventName:   b.EventName,
		Status:      b.Status,
		MatchIDs:    b.MatchIDs,
		Results:     results,
		RetryCount:  b.RetryCount,
		NextRetryAt: b.NextRetryAt,
		LastError:   b.LastError,
		StartedAt:   b.StartedAt,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// WebhookEvent is a stored Authority push keyed by its dedupe hash.
type WebhookEvent struct {
	bun.BaseModel `bun:"table:dupr_webhook_events,alias:we"`

	DedupeKey       string          `bun:"dedupe_key,pk"`
	EventType       string          `bun:"event_type,nullzero"`
	ClientID        string          `bun:"client_id,nullzero"`
	DuprID          string          `bun:"dupr_id,nullzero"`
	Payload         json.RawMessage `bun:"payload,type:jsonb"`
	Processed       bool            `bun:"processed,notnull,default:false"`
	ProcessingError string          `bun:"processing_error,nullzero"`
	ReceivedAt      time.Time       `bun:"received_at,nullzero,notnull,default:current_timestamp"`
	ProcessedAt     *time.Time      `bun:"processed_at"`
}

func (e *WebhookEvent) toDomain() *duprdomain.WebhookEvent {
	return &duprdomain.WebhookEvent{
		DedupeKey:       e.DedupeKey,
		EventType:       e.EventType,
		ClientID:        e.ClientID,
		DuprID:          e.DuprID,
		Payload:         e.Payload,
		Processed:       e.Processed,
		ProcessingError: e.ProcessingError,
		ReceivedAt:      e.ReceivedAt,
		ProcessedAt:     e.ProcessedAt,
	}
}

// RatingSnapshot is the last-known rating of a player.
type RatingSnapshot struct {
	bun.BaseModel `bun:"table:dupr_rating_snapshots,alias:rs"`

	DuprID   string                  `bun:"dupr_id,pk"`
	Singles  *float64                `bun:"singles"`
	Doubles  *float64                `bun:"doubles"`
	Source   duprdomain.RatingSource `bun:"source,notnull"`
	SyncedAt time.Time               `bun:"synced_at,notnull"`
}
