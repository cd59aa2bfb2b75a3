package matchmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating matches table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS matches (
					id TEXT PRIMARY KEY,
					event_type TEXT NOT NULL,
					event_id TEXT NOT NULL,
					event_name TEXT,
					status TEXT NOT NULL DEFAULT 'scheduled',
					score_state TEXT NOT NULL DEFAULT 'none',
					locked BOOLEAN NOT NULL DEFAULT FALSE,
					play_type TEXT,
					match_date TIMESTAMPTZ,
					side_a JSONB NOT NULL DEFAULT '{}'::jsonb,
					side_b JSONB NOT NULL DEFAULT '{}'::jsonb,
					official JSONB,
					proposal JSONB,
					rules JSONB,
					dupr_eligible BOOLEAN NOT NULL DEFAULT FALSE,
					dupr_submitted BOOLEAN NOT NULL DEFAULT FALSE,
					dupr_submission_id TEXT,
					dupr_submitted_at TIMESTAMPTZ,
					dupr_last_error TEXT NOT NULL DEFAULT '',
					dupr_pending BOOLEAN NOT NULL DEFAULT FALSE,
					dupr_batch_id TEXT,
					dupr_retry_count INTEGER NOT NULL DEFAULT 0,
					dupr_needs_correction BOOLEAN NOT NULL DEFAULT FALSE,
					dupr_correction_submitted BOOLEAN NOT NULL DEFAULT FALSE,
					dupr_last_attempt_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_matches_event ON matches(event_type, event_id);
				CREATE INDEX IF NOT EXISTS idx_matches_needs_correction
					ON matches(dupr_needs_correction) WHERE dupr_needs_correction AND NOT dupr_correction_submitted;
			`); err != nil {
				return fmt.Errorf("failed to create matches table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping matches table...")

		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS matches;`); err != nil {
			return fmt.Errorf("failed to drop matches table: %w", err)
		}
		return nil
	})
}
