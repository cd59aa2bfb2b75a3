package duprqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	duprservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/application"
	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Runner is the slice of the submission service the workers drive.
type Runner interface {
	ProcessBatch(ctx context.Context, batchID uuid.UUID) (*duprservice.BatchSummary, error)
	ProcessDueBatches(ctx context.Context) (*duprservice.SweepSummary, error)
	SweepReadyEvents(ctx context.Context) (*duprservice.SweepSummary, error)
	RunCorrectionSweep(ctx context.Context) (*duprservice.CorrectionSummary, error)
	RunRatingSync(ctx context.Context) (*duprservice.SyncSummary, error)
}

// sweepTimeout bounds one sweep. A batch cut off by it stays processing
// until the stale re-pickup.
const sweepTimeout = 10 * time.Minute

// settle maps a sweep error to the job result. Token failures are not
// retried by River; the next tick runs the sweep anyway.
func settle(ctx context.Context, logger *slog.Logger, kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, duprdomain.ErrTokenUnavailable) {
		logger.WarnContext(ctx, "Job skipped, DUPR token unavailable", attr.String("job_kind", kind), attr.Error(err))
		return nil
	}
	logger.ErrorContext(ctx, "Job failed", attr.String("job_kind", kind), attr.Error(err))
	return err
}

// ProcessBatchWorker handles ProcessBatchJob.
type ProcessBatchWorker struct {
	river.WorkerDefaults[ProcessBatchJob]
	logger *slog.Logger
	runner Runner
}

func NewProcessBatchWorker(logger *slog.Logger, runner Runner) *ProcessBatchWorker {
	return &ProcessBatchWorker{logger: logger, runner: runner}
}

func (w *ProcessBatchWorker) Timeout(*river.Job[ProcessBatchJob]) time.Duration { return sweepTimeout }

func (w *ProcessBatchWorker) Work(ctx context.Context, job *river.Job[ProcessBatchJob]) error {
	id, err := uuid.Parse(job.Args.BatchID)
	if err != nil {
		return river.JobCancel(fmt.Errorf("invalid batch id %q: %w", job.Args.BatchID, err))
	}

	summary, err := w.runner.ProcessBatch(ctx, id)
	if errors.Is(err, duprservice.ErrBatchNotFound) || errors.Is(err, duprservice.ErrBatchNotClaimable) {
		w.logger.InfoContext(ctx, "Batch job cancelled", attr.BatchID(job.Args.BatchID), attr.Error(err))
		return river.JobCancel(err)
	}
	if err := settle(ctx, w.logger, job.Kind, err); err != nil || summary == nil {
		return err
	}

	w.logger.InfoContext(ctx, "Batch job finished",
		attr.BatchID(summary.BatchID),
		attr.String("status", string(summary.Status)),
		attr.Int("submitted", summary.Counts.Submitted),
		attr.Int("failed", summary.Counts.Failed),
	)
	return nil
}

// BatchSweepWorker handles BatchSweepJob.
type BatchSweepWorker struct {
	river.WorkerDefaults[BatchSweepJob]
	logger *slog.Logger
	runner Runner
}

func NewBatchSweepWorker(logger *slog.Logger, runner Runner) *BatchSweepWorker {
	return &BatchSweepWorker{logger: logger, runner: runner}
}

func (w *BatchSweepWorker) Timeout(*river.Job[BatchSweepJob]) time.Duration { return sweepTimeout }

func (w *BatchSweepWorker) Work(ctx context.Context, job *river.Job[BatchSweepJob]) error {
	summary, err := w.runner.ProcessDueBatches(ctx)
	if err := settle(ctx, w.logger, job.Kind, err); err != nil || summary == nil {
		return err
	}
	if summary.Picked > 0 {
		w.logger.InfoContext(ctx, "Batch sweep finished",
			attr.Int("picked", summary.Picked),
			attr.Int("processed", summary.Processed),
			attr.Int("errors", summary.Errors),
		)
	}
	return nil
}

// EventSweepWorker handles EventSweepJob.
type EventSweepWorker struct {
	river.WorkerDefaults[EventSweepJob]
	logger *slog.Logger
	runner Runner
}

func NewEventSweepWorker(logger *slog.Logger, runner Runner) *EventSweepWorker {
	return &EventSweepWorker{logger: logger, runner: runner}
}

func (w *EventSweepWorker) Timeout(*river.Job[EventSweepJob]) time.Duration { return sweepTimeout }

func (w *EventSweepWorker) Work(ctx context.Context, job *river.Job[EventSweepJob]) error {
	_, err := w.runner.SweepReadyEvents(ctx)
	return settle(ctx, w.logger, job.Kind, err)
}

// CorrectionSweepWorker handles CorrectionSweepJob.
type CorrectionSweepWorker struct {
	river.WorkerDefaults[CorrectionSweepJob]
	logger *slog.Logger
	runner Runner
}

func NewCorrectionSweepWorker(logger *slog.Logger, runner Runner) *CorrectionSweepWorker {
	return &CorrectionSweepWorker{logger: logger, runner: runner}
}

func (w *CorrectionSweepWorker) Timeout(*river.Job[CorrectionSweepJob]) time.Duration {
	return sweepTimeout
}

func (w *CorrectionSweepWorker) Work(ctx context.Context, job *river.Job[CorrectionSweepJob]) error {
	_, err := w.runner.RunCorrectionSweep(ctx)
	return settle(ctx, w.logger, job.Kind, err)
}

// RatingSyncWorker handles RatingSyncJob.
type RatingSyncWorker struct {
	river.WorkerDefaults[RatingSyncJob]
	logger *slog.Logger
	runner Runner
}

func NewRatingSyncWorker(logger *slog.Logger, runner Runner) *RatingSyncWorker {
	return &RatingSyncWorker{logger: logger, runner: runner}
}

func (w *RatingSyncWorker) Timeout(*river.Job[RatingSyncJob]) time.Duration { return 30 * time.Minute }

func (w *RatingSyncWorker) Work(ctx context.Context, job *river.Job[RatingSyncJob]) error {
	_, err := w.runner.RunRatingSync(ctx)
	return settle(ctx, w.logger, job.Kind, err)
}

// registerWorkers adds every submission worker to workers.
func registerWorkers(workers *river.Workers, logger *slog.Logger, runner Runner) {
	river.AddWorker(workers, NewProcessBatchWorker(logger, runner))
	river.AddWorker(workers, NewBatchSweepWorker(logger, runner))
	river.AddWorker(workers, NewEventSweepWorker(logger, runner))
	river.AddWorker(workers, NewCorrectionSweepWorker(logger, runner))
	river.AddWorker(workers, NewRatingSyncWorker(logger, runner))
}
