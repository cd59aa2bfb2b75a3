package usermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating player_profiles table...")

		_, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS player_profiles (
				user_id TEXT PRIMARY KEY,
				display_name TEXT,
				dupr_id TEXT UNIQUE,
				singles_rating DOUBLE PRECISION,
				doubles_rating DOUBLE PRECISION,
				rating_updated_at TIMESTAMPTZ,
				dupr_subscribed BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`)
		if err != nil {
			return fmt.Errorf("failed to create player_profiles table: %w", err)
		}

		fmt.Println("player_profiles table created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping player_profiles table...")

		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS player_profiles;`); err != nil {
			return fmt.Errorf("failed to drop player_profiles table: %w", err)
		}
		return nil
	})
}
