package userdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Repository defines the persistence contract for player profiles.
//
// Error semantics:
//   - ErrNotFound: requested profile does not exist (Get methods)
//   - ErrNoRowsAffected: UPDATE matched no rows
//   - other errors: infrastructure failures
type Repository interface {
	Upsert(ctx context.Context, db bun.IDB, profile *PlayerProfile) error
	GetByUserIDs(ctx context.Context, db bun.IDB, userIDs []string) ([]*PlayerProfile, error)
	GetByDuprID(ctx context.Context, db bun.IDB, duprID string) (*PlayerProfile, error)

	// ListLinked returns every profile with a rating-authority link.
	ListLinked(ctx context.Context, db bun.IDB) ([]*PlayerProfile, error)

	// UpdateRatings stores the latest ratings on the profile linked to duprID.
	// Nil ratings leave the stored value untouched.
	UpdateRatings(ctx context.Context, db bun.IDB, duprID string, singles, doubles *float64, at time.Time) error

	// MarkSubscribed flags the profiles linked to duprIDs as registered for rating webhooks.
	MarkSubscribed(ctx context.Context, db bun.IDB, duprIDs []string) error
}
