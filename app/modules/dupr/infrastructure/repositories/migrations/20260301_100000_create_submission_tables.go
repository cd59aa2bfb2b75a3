package duprmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating dupr submission tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS dupr_submission_batches (
					id UUID PRIMARY KEY,
					event_type TEXT NOT NULL,
					event_id TEXT NOT NULL,
					event_name TEXT,
					status TEXT NOT NULL,
					match_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
					results JSONB NOT NULL DEFAULT '[]'::jsonb,
					retry_count INTEGER NOT NULL DEFAULT 0,
					next_retry_at TIMESTAMPTZ,
					last_error TEXT NOT NULL DEFAULT '',
					started_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_dupr_batches_status ON dupr_submission_batches(status, next_retry_at);
				CREATE INDEX IF NOT EXISTS idx_dupr_batches_event ON dupr_submission_batches(event_type, event_id);
			`); err != nil {
				return fmt.Errorf("failed to create dupr_submission_batches table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS dupr_webhook_events (
					dedupe_key TEXT PRIMARY KEY,
					event_type TEXT,
					client_id TEXT,
					dupr_id TEXT,
					payload JSONB,
					processed BOOLEAN NOT NULL DEFAULT FALSE,
					processing_error TEXT,
					received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					processed_at TIMESTAMPTZ
				);
			`); err != nil {
				return fmt.Errorf("failed to create dupr_webhook_events table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS dupr_rating_snapshots (
					dupr_id TEXT PRIMARY KEY,
					singles DOUBLE PRECISION,
					doubles DOUBLE PRECISION,
					source TEXT NOT NULL,
					synced_at TIMESTAMPTZ NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create dupr_rating_snapshots table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping dupr submission tables...")

		if _, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS dupr_rating_snapshots;
			DROP TABLE IF EXISTS dupr_webhook_events;
			DROP TABLE IF EXISTS dupr_submission_batches;
		`); err != nil {
			return fmt.Errorf("failed to drop dupr submission tables: %w", err)
		}
		return nil
	})
}
