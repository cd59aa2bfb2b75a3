package duprdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new submission store.
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

// CreateBatch inserts a new batch.
func (r *Impl) CreateBatch(ctx context.Context, db bun.IDB, batch *duprdomain.Batch) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	if _, err := db.NewInsert().Model(batchFromDomain(batch)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create submission batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by id.
func (r *Impl) GetBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*duprdomain.Batch, error) {
	db = r.resolveDB(db)
	row := new(SubmissionBatch)
	err := db.NewSelect().
		Model(row).
		Where("sb.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission batch: %w", err)
	}
	return row.toDomain(), nil
}

// ClaimBatch is a compare-and-set on (status, started_at).
func (r *Impl) ClaimBatch(ctx context.Context, db bun.IDB, id uuid.UUID, observed duprdomain.BatchStatus, observedStartedAt *time.Time, startedAt time.Time) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*SubmissionBatch)(nil)).
		Set("status = ?", duprdomain.BatchStatusProcessing).
		Set("started_at = ?", startedAt).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", observed)
	if observedStartedAt == nil {
		q = q.Where("started_at IS NULL")
	} else {
		q = q.Where("started_at = ?", *observedStartedAt)
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to claim submission batch: %w", err)
	}
	return checkAffected(result)
}

// SaveOutcome writes the result of a processing pass.
func (r *Impl) SaveOutcome(ctx context.Context, db bun.IDB, batch *duprdomain.Batch) error {
	db = r.resolveDB(db)
	row := batchFromDomain(batch)
	row.UpdatedAt = time.Now().UTC()
	result, err := db.NewUpdate().
		Model(row).
		Column("status", "results", "retry_count", "next_retry_at", "last_error", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save batch outcome: %w", err)
	}
	return checkAffected(result)
}

// ReleaseBatch hands a claimed batch back without touching its results.
func (r *Impl) ReleaseBatch(ctx context.Context, db bun.IDB, id uuid.UUID, status duprdomain.BatchStatus, lastError string) error {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*SubmissionBatch)(nil)).
		Set("status = ?", status).
		Set("last_error = ?", lastError).
		Set("started_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", duprdomain.BatchStatusProcessing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release submission batch: %w", err)
	}
	return checkAffected(result)
}

// ListDue returns the batches a scheduled sweep should pick up.
func (r *Impl) ListDue(ctx context.Context, db bun.IDB, now time.Time, maxRetries int, staleBefore time.Time) ([]*duprdomain.Batch, error) {
	db = r.resolveDB(db)
	var rows []*SubmissionBatch
	err := db.NewSelect().
		Model(&rows).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("sb.status = ?", duprdomain.BatchStatusPending).
				WhereOr("sb.status = ? AND sb.next_retry_at IS NOT NULL AND sb.next_retry_at <= ? AND sb.retry_count < ?",
					duprdomain.BatchStatusPartialFailure, now, maxRetries).
				WhereOr("sb.status = ? AND sb.started_at < ?", duprdomain.BatchStatusProcessing, staleBefore)
		}).
		OrderExpr("sb.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list due batches: %w", err)
	}
	out := make([]*duprdomain.Batch, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
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
