package matchdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new match repository.
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

// Create inserts a new match.
func (r *Impl) Create(ctx context.Context, db bun.IDB, match *matchdomain.Match) error {
	db = r.resolveDB(db)
	row := FromDomain(match)
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by id.
func (r *Impl) GetByID(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error) {
	db = r.resolveDB(db)
	row := new(Match)
	err := db.NewSelect().
		Model(row).
		Where("m.id = ?", matchID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match by id: %w", err)
	}
	return row.ToDomain(), nil
}

func (r *Impl) list(ctx context.Context, db bun.IDB, op string, apply func(q *bun.SelectQuery) *bun.SelectQuery) ([]*matchdomain.Match, error) {
	var rows []*Match
	q := r.resolveDB(db).NewSelect().Model(&rows)
	if err := apply(q).OrderExpr("m.match_date ASC, m.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	out := make([]*matchdomain.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

// ListOfficialCompleted returns completed matches with an official score state.
func (r *Impl) ListOfficialCompleted(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error) {
	return r.list(ctx, db, "list official matches", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("m.event_type = ?", eventType).
			Where("m.event_id = ?", eventID).
			Where("m.status = ?", matchdomain.MatchStatusCompleted).
			Where("m.score_state = ?", matchdomain.ScoreStateOfficial)
	})
}

// ListRetryable returns unsubmitted matches with an error or a pending flag.
func (r *Impl) ListRetryable(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error) {
	return r.list(ctx, db, "list retryable matches", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("m.event_type = ?", eventType).
			Where("m.event_id = ?", eventID).
			Where("m.dupr_submitted = FALSE").
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("m.dupr_last_error <> ''").WhereOr("m.dupr_pending = TRUE")
			})
	})
}

// ListNeedingCorrection returns matches whose correction is outstanding.
func (r *Impl) ListNeedingCorrection(ctx context.Context, db bun.IDB) ([]*matchdomain.Match, error) {
	return r.list(ctx, db, "list correction candidates", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("m.dupr_needs_correction = TRUE").
			Where("m.dupr_correction_submitted = FALSE")
	})
}

// ListReadyEvents returns distinct events that hold submission-ready matches.
func (r *Impl) ListReadyEvents(ctx context.Context, db bun.IDB) ([]EventRef, error) {
	db = r.resolveDB(db)
	var refs []EventRef
	err := db.NewSelect().
		Model((*Match)(nil)).
		ColumnExpr("DISTINCT m.event_type, m.event_id").
		Where("m.status = ?", matchdomain.MatchStatusCompleted).
		Where("m.score_state = ?", matchdomain.ScoreStateOfficial).
		Where("m.locked = TRUE").
		Where("m.dupr_eligible = TRUE").
		Where("m.dupr_submitted = FALSE").
		Where("m.dupr_pending = FALSE").
		Where("m.dupr_last_error = ''").
		Where("m.dupr_needs_correction = FALSE").
		OrderExpr("m.event_type, m.event_id").
		Scan(ctx, &refs)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready events: %w", err)
	}
	return refs, nil
}

func applySubmission(q *bun.UpdateQuery, u SubmissionUpdate) *bun.UpdateQuery {
	if u.Eligible != nil {
		q = q.Set("dupr_eligible = ?", *u.Eligible)
	}
	if u.Submitted != nil {
		q = q.Set("dupr_submitted = ?", *u.Submitted)
	}
	if u.SubmissionID != nil {
		q = q.Set("dupr_submission_id = ?", *u.SubmissionID)
	}
	if u.SubmittedAt != nil {
		q = q.Set("dupr_submitted_at = ?", *u.SubmittedAt)
	}
	if u.LastError != nil {
		q = q.Set("dupr_last_error = ?", *u.LastError)
	}
	if u.Pending != nil {
		q = q.Set("dupr_pending = ?", *u.Pending)
	}
	if u.BatchID != nil {
		q = q.Set("dupr_batch_id = ?", *u.BatchID)
	}
	if u.RetryCount != nil {
		q = q.Set("dupr_retry_count = ?", *u.RetryCount)
	}
	if u.NeedsCorrection != nil {
		q = q.Set("dupr_needs_correction = ?", *u.NeedsCorrection)
	}
	if u.CorrectionSubmitted != nil {
		q = q.Set("dupr_correction_submitted = ?", *u.CorrectionSubmitted)
	}
	if u.LastAttemptAt != nil {
		q = q.Set("dupr_last_attempt_at = ?", *u.LastAttemptAt)
	}
	if u.ScoreState != nil {
		q = q.Set("score_state = ?", *u.ScoreState)
	}
	return q
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// UpdateSubmission applies a field-level update to the submission columns.
func (r *Impl) UpdateSubmission(ctx context.Context, db bun.IDB, matchID string, update SubmissionUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Match)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", matchID)
	result, err := applySubmission(q, update).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update match submission state: %w", err)
	}
	return checkAffected(result)
}

// UpdateResult stores a new official result together with any submission flags.
func (r *Impl) UpdateResult(ctx context.Context, db bun.IDB, matchID string, update ResultUpdate) error {
	db = r.resolveDB(db)
	official, err := json.Marshal(update.Official)
	if err != nil {
		return fmt.Errorf("failed to encode official result: %w", err)
	}
	q := db.NewUpdate().
		Model((*Match)(nil)).
		Set("official = ?::jsonb", string(official)).
		Set("status = ?", update.Status).
		Set("score_state = ?", update.ScoreState).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", matchID)
	sub := update.Submission
	sub.ScoreState = nil
	result, err := applySubmission(q, sub).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update match result: %w", err)
	}
	return checkAffected(result)
}
