package duprdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/uptrace/bun"
)

// GetWebhookEvent retrieves a stored push by dedupe key.
func (r *Impl) GetWebhookEvent(ctx context.Context, db bun.IDB, dedupeKey string) (*duprdomain.WebhookEvent, error) {
	db = r.resolveDB(db)
	row := new(WebhookEvent)
	err := db.NewSelect().
		Model(row).
		Where("we.dedupe_key = ?", dedupeKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return row.toDomain(), nil
}

// InsertWebhookEvent stores a push unless its key is already present.
func (r *Impl) InsertWebhookEvent(ctx context.Context, db bun.IDB, event *duprdomain.WebhookEvent) (bool, error) {
	db = r.resolveDB(db)
	row := &WebhookEvent{
		DedupeKey:       event.DedupeKey,
		EventType:       event.EventType,
		ClientID:        event.ClientID,
		DuprID:          event.DuprID,
		Payload:         event.Payload,
		Processed:       event.Processed,
		ProcessingError: event.ProcessingError,
		ReceivedAt:      event.ReceivedAt,
		ProcessedAt:     event.ProcessedAt,
	}
	result, err := db.NewInsert().
		Model(row).
		On("CONFLICT (dedupe_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert webhook event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkWebhookProcessed records that a push has been handled.
func (r *Impl) MarkWebhookProcessed(ctx context.Context, db bun.IDB, dedupeKey string, processingError string, at time.Time) error {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*WebhookEvent)(nil)).
		Set("processed = TRUE").
		Set("processing_error = ?", processingError).
		Set("processed_at = ?", at).
		Where("dedupe_key = ?", dedupeKey).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return checkAffected(result)
}

// UpsertSnapshot writes a rating snapshot, last writer wins.
func (r *Impl) UpsertSnapshot(ctx context.Context, db bun.IDB, snapshot duprdomain.RatingSnapshot) error {
	db = r.resolveDB(db)
	row := &RatingSnapshot{
		DuprID:   snapshot.DuprID,
		Singles:  snapshot.Singles,
		Doubles:  snapshot.Doubles,
		Source:   snapshot.Source,
		SyncedAt: snapshot.SyncedAt,
	}
	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (dupr_id) DO UPDATE").
		Set("singles = COALESCE(EXCLUDED.singles, ?TableAlias.singles)").
		Set("doubles = COALESCE(EXCLUDED.doubles, ?TableAlias.doubles)").
		Set("source = EXCLUDED.source").
		Set("synced_at = EXCLUDED.synced_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert rating snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the snapshot for a player.
func (r *Impl) GetSnapshot(ctx context.Context, db bun.IDB, duprID string) (*duprdomain.RatingSnapshot, error) {
	db = r.resolveDB(db)
	row := new(RatingSnapshot)
	err := db.NewSelect().
		Model(row).
		Where("rs.dupr_id = ?", duprID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rating snapshot: %w", err)
	}
	return &duprdomain.RatingSnapshot{
		DuprID:   row.DuprID,
		Singles:  row.Singles,
		Doubles:  row.Doubles,
		Source:   row.Source,
		SyncedAt: row.SyncedAt,
	}, nil
}
