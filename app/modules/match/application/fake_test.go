package matchservice

import (
	"context"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Match Repo
// ------------------------

type FakeMatchRepo struct {
	trace []string

	CreateFunc                func(ctx context.Context, db bun.IDB, match *matchdomain.Match) error
	GetByIDFunc               func(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error)
	ListOfficialCompletedFunc func(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error)
	ListRetryableFunc         func(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error)
	ListNeedingCorrectionFunc func(ctx context.Context, db bun.IDB) ([]*matchdomain.Match, error)
	ListReadyEventsFunc       func(ctx context.Context, db bun.IDB) ([]matchdb.EventRef, error)
	UpdateSubmissionFunc      func(ctx context.Context, db bun.IDB, matchID string, update matchdb.SubmissionUpdate) error
	UpdateResultFunc          func(ctx context.Context, db bun.IDB, matchID string, update matchdb.ResultUpdate) error
}

func NewFakeMatchRepo() *FakeMatchRepo {
	return &FakeMatchRepo{trace: []string{}}
}

func (f *FakeMatchRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeMatchRepo) Create(ctx context.Context, db bun.IDB, match *matchdomain.Match) error {
	f.record("Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, db, match)
	}
	return nil
}

func (f *FakeMatchRepo) GetByID(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error) {
	f.record("GetByID")
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, db, matchID)
	}
	return nil, matchdb.ErrNotFound
}

func (f *FakeMatchRepo) ListOfficialCompleted(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error) {
	f.record("ListOfficialCompleted")
	if f.ListOfficialCompletedFunc != nil {
		return f.ListOfficialCompletedFunc(ctx, db, eventType, eventID)
	}
	return nil, nil
}

func (f *FakeMatchRepo) ListRetryable(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error) {
	f.record("ListRetryable")
	if f.ListRetryableFunc != nil {
		return f.ListRetryableFunc(ctx, db, eventType, eventID)
	}
	return nil, nil
}

func (f *FakeMatchRepo) ListNeedingCorrection(ctx context.Context, db bun.IDB) ([]*matchdomain.Match, error) {
	f.record("ListNeedingCorrection")
	if f.ListNeedingCorrectionFunc != nil {
		return f.ListNeedingCorrectionFunc(ctx, db)
	}
	return nil, nil
}

func (f *FakeMatchRepo) ListReadyEvents(ctx context.Context, db bun.IDB) ([]matchdb.EventRef, error) {
	f.record("ListReadyEvents")
	if f.ListReadyEventsFunc != nil {
		return f.ListReadyEventsFunc(ctx, db)
	}
	return nil, nil
}

func (f *FakeMatchRepo) UpdateSubmission(ctx context.Context, db bun.IDB, matchID string, update matchdb.SubmissionUpdate) error {
	f.record("UpdateSubmission")
	if f.UpdateSubmissionFunc != nil {
		return f.UpdateSubmissionFunc(ctx, db, matchID, update)
	}
	return nil
}

func (f *FakeMatchRepo) UpdateResult(ctx context.Context, db bun.IDB, matchID string, update matchdb.ResultUpdate) error {
	f.record("UpdateResult")
	if f.UpdateResultFunc != nil {
		return f.UpdateResultFunc(ctx, db, matchID, update)
	}
	return nil
}

// --- Accessors for assertions ---

func (f *FakeMatchRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ matchdb.Repository = (*FakeMatchRepo)(nil)
