package duprdb

import (
	"context"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BatchRepository persists submission batches.
type BatchRepository interface {
	CreateBatch(ctx context.Context, db bun.IDB, batch *duprdomain.Batch) error
	GetBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*duprdomain.Batch, error)

	// ClaimBatch moves a batch to processing if it is still in the observed
	// status and start time. It returns ErrNoRowsAffected when another worker
	// got there first.
	ClaimBatch(ctx context.Context, db bun.IDB, id uuid.UUID, observed duprdomain.BatchStatus, observedStartedAt *time.Time, startedAt time.Time) error

	// SaveOutcome writes status, results and retry schedule of a finished pass.
	SaveOutcome(ctx context.Context, db bun.IDB, batch *duprdomain.Batch) error

	// ReleaseBatch returns a claimed batch to status with lastError, leaving its results untouched.
	ReleaseBatch(ctx context.Context, db bun.IDB, id uuid.UUID, status duprdomain.BatchStatus, lastError string) error

	// ListDue returns pending batches, partial failures due for retry under
	// maxRetries, and processing batches started before staleBefore.
	ListDue(ctx context.Context, db bun.IDB, now time.Time, maxRetries int, staleBefore time.Time) ([]*duprdomain.Batch, error)
}

// WebhookRepository persists Authority pushes.
type WebhookRepository interface {
	GetWebhookEvent(ctx context.Context, db bun.IDB, dedupeKey string) (*duprdomain.WebhookEvent, error)
	// InsertWebhookEvent stores the event; it reports false when the key already exists.
	InsertWebhookEvent(ctx context.Context, db bun.IDB, event *duprdomain.WebhookEvent) (bool, error)
	MarkWebhookProcessed(ctx context.Context, db bun.IDB, dedupeKey string, processingError string, at time.Time) error
}

// SnapshotRepository persists rating snapshots.
type SnapshotRepository interface {
	// UpsertSnapshot writes the snapshot, last writer wins.
	UpsertSnapshot(ctx context.Context, db bun.IDB, snapshot duprdomain.RatingSnapshot) error
	GetSnapshot(ctx context.Context, db bun.IDB, duprID string) (*duprdomain.RatingSnapshot, error)
}

// Repository is the full submission store.
type Repository interface {
	BatchRepository
	WebhookRepository
	SnapshotRepository
}
