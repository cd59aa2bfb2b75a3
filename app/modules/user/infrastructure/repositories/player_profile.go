package userdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new player profile repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// Upsert creates or updates a profile keyed by user id.
func (r *Impl) Upsert(ctx context.Context, db bun.IDB, profile *PlayerProfile) error {
	db = r.resolveDB(db)
	profile.UpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(profile).
		On("CONFLICT (user_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("dupr_id = EXCLUDED.dupr_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert player profile: %w", err)
	}
	return nil
}

// GetByUserIDs retrieves the profiles of the given users. Unknown ids are skipped.
func (r *Impl) GetByUserIDs(ctx context.Context, db bun.IDB, userIDs []string) ([]*PlayerProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	db = r.resolveDB(db)
	var profiles []*PlayerProfile
	err := db.NewSelect().
		Model(&profiles).
		Where("pp.user_id IN (?)", bun.In(userIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player profiles: %w", err)
	}
	return profiles, nil
}

// GetByDuprID retrieves the profile linked to a rating-authority id.
func (r *Impl) GetByDuprID(ctx context.Context, db bun.IDB, duprID string) (*PlayerProfile, error) {
	db = r.resolveDB(db)
	profile := new(PlayerProfile)
	err := db.NewSelect().
		Model(profile).
		Where("pp.dupr_id = ?", duprID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player profile by dupr id: %w", err)
	}
	return profile, nil
}

// ListLinked returns every profile with a rating-authority link.
func (r *Impl) ListLinked(ctx context.Context, db bun.IDB) ([]*PlayerProfile, error) {
	db = r.resolveDB(db)
	var profiles []*PlayerProfile
	err := db.NewSelect().
		Model(&profiles).
		Where("pp.dupr_id IS NOT NULL").
		Where("pp.dupr_id <> ''").
		OrderExpr("pp.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked profiles: %w", err)
	}
	return profiles, nil
}

// UpdateRatings stores the latest ratings on the linked profile.
func (r *Impl) UpdateRatings(ctx context.Context, db bun.IDB, duprID string, singles, doubles *float64, at time.Time) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*PlayerProfile)(nil)).
		Set("rating_updated_at = ?", at).
		Set("updated_at = ?", time.Now().UTC()).
		Where("dupr_id = ?", duprID)
	if singles != nil {
		q = q.Set("singles_rating = ?", *singles)
	}
	if doubles != nil {
		q = q.Set("doubles_rating = ?", *doubles)
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update profile ratings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// MarkSubscribed flags the linked profiles as registered for rating webhooks.
func (r *Impl) MarkSubscribed(ctx context.Context, db bun.IDB, duprIDs []string) error {
	if len(duprIDs) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.NewUpdate().
		Model((*PlayerProfile)(nil)).
		Set("dupr_subscribed = TRUE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("dupr_id IN (?)", bun.In(duprIDs)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark profiles subscribed: %w", err)
	}
	return nil
}
