package matchdb

import (
	"context"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/uptrace/bun"
)

// Repository defines the persistence contract for matches.
//
// Error semantics:
//   - ErrNotFound: requested match does not exist (Get methods)
//   - ErrNoRowsAffected: UPDATE matched no rows
//   - other errors: infrastructure failures
type Repository interface {
	Create(ctx context.Context, db bun.IDB, match *matchdomain.Match) error
	GetByID(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error)

	// ListOfficialCompleted returns completed matches with an official score state for an event.
	ListOfficialCompleted(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error)
	// ListRetryable returns unsubmitted matches of an event with a recorded error or a pending flag.
	ListRetryable(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error)
	// ListNeedingCorrection returns matches flagged for a correction that has not been sent yet.
	ListNeedingCorrection(ctx context.Context, db bun.IDB) ([]*matchdomain.Match, error)
	// ListReadyEvents returns the events holding at least one submission-ready match.
	ListReadyEvents(ctx context.Context, db bun.IDB) ([]EventRef, error)

	UpdateSubmission(ctx context.Context, db bun.IDB, matchID string, update SubmissionUpdate) error
	UpdateResult(ctx context.Context, db bun.IDB, matchID string, update ResultUpdate) error
}
