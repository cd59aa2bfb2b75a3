package duprqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"
)

const serviceLabel = "river"

// QueueService interface defines the contract for submission job scheduling
type QueueService interface {
	// EnqueueBatch schedules an asynchronous pass over a batch.
	EnqueueBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	// GetBatchJobs returns the queued jobs of a batch (for debugging)
	GetBatchJobs(ctx context.Context, batchID uuid.UUID) ([]JobInfo, error)
	// HealthCheck verifies the queue service is healthy
	HealthCheck(ctx context.Context) error
	// Start starts the queue service
	Start(ctx context.Context) error
	// Stop stops the queue service
	Stop(ctx context.Context) error
}

// Ensure Service implements QueueService
var _ QueueService = (*Service)(nil)

// Schedule holds the periodic sweep intervals. A zero interval disables
// that sweep.
type Schedule struct {
	Enabled            bool
	QueueSweepInterval time.Duration
	EventSweepInterval time.Duration
	CorrectionInterval time.Duration
	RatingSyncInterval time.Duration
}

// PeriodicJobs builds the River periodic jobs for s. Only the batch sweep
// runs on start, so a restart resumes stalled batches at once.
func PeriodicJobs(s Schedule) []*river.PeriodicJob {
	if !s.Enabled {
		return nil
	}
	opts := &river.InsertOpts{Queue: QueueName}
	var jobs []*river.PeriodicJob
	add := func(every time.Duration, args river.JobArgs, runOnStart bool) {
		if every <= 0 {
			return
		}
		jobs = append(jobs, river.NewPeriodicJob(
			river.PeriodicInterval(every),
			func() (river.JobArgs, *river.InsertOpts) { return args, opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		))
	}
	add(s.QueueSweepInterval, BatchSweepJob{}, true)
	add(s.EventSweepInterval, EventSweepJob{}, false)
	add(s.CorrectionInterval, CorrectionSweepJob{}, false)
	add(s.RatingSyncInterval, RatingSyncJob{}, false)
	return jobs
}

// Service handles job scheduling for the submission pipeline using River
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics metrics.OperationMetrics
}

// NewService creates a River-based queue service. River needs pgx, so it
// opens its own pool on dsn next to bunDB.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, m metrics.OperationMetrics, runner Runner, schedule Schedule) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_dupr_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	m.RecordOperationAttempt(ctx, "initialize_service", serviceLabel)

	ctxLogger.InfoContext(ctx, "Initializing DUPR queue service")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.ErrorContext(ctx, "Failed to parse DSN for River", attr.Error(err))
		m.RecordOperationFailure(ctx, "initialize_service", serviceLabel)
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.ErrorContext(ctx, "Failed to create pgx pool for River", attr.Error(err))
		m.RecordOperationFailure(ctx, "initialize_service", serviceLabel)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.ErrorContext(ctx, "Failed to ping database for River", attr.Error(err))
		m.RecordOperationFailure(ctx, "initialize_service", serviceLabel)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	registerWorkers(workers, ctxLogger, runner)

	// Sweeps run one at a time so a batch is never processed by two of them.
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 5},
			QueueName:          {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: PeriodicJobs(schedule),
	})
	if err != nil {
		pool.Close()
		ctxLogger.ErrorContext(ctx, "Failed to create River client", attr.Error(err))
		m.RecordOperationFailure(ctx, "initialize_service", serviceLabel)
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	m.RecordOperationSuccess(ctx, "initialize_service", serviceLabel)
	m.RecordOperationDuration(ctx, "initialize_service", serviceLabel, time.Since(start))

	ctxLogger.InfoContext(ctx, "DUPR queue service initialized",
		attr.Bool("scheduler_enabled", schedule.Enabled),
		attr.Int("periodic_jobs", len(PeriodicJobs(schedule))),
	)
	return &Service{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: m,
	}, nil
}

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", serviceLabel)

	if err := s.client.Start(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", serviceLabel)
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", serviceLabel)
	s.metrics.RecordOperationDuration(ctx, "start_service", serviceLabel, time.Since(start))
	s.logger.InfoContext(ctx, "DUPR queue service started")
	return nil
}

// Stop stops the River queue service and closes its pool.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", serviceLabel)
	defer s.pool.Close()

	if err := s.client.Stop(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", serviceLabel)
		return fmt.Errorf("failed to stop River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "stop_service", serviceLabel)
	s.metrics.RecordOperationDuration(ctx, "stop_service", serviceLabel, time.Since(start))
	s.logger.InfoContext(ctx, "DUPR queue service stopped")
	return nil
}

// EnqueueBatch schedules a pass over batchID. Inserting the same batch twice
// while a job for it is still queued is a no-op.
func (s *Service) EnqueueBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "enqueue_batch", serviceLabel)

	res, err := s.client.Insert(ctx, ProcessBatchJob{BatchID: batchID.String()}, &river.InsertOpts{
		Queue: QueueName,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue batch job", attr.BatchID(batchID.String()), attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "enqueue_batch", serviceLabel)
		return 0, fmt.Errorf("failed to enqueue batch job: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "enqueue_batch", serviceLabel)
	s.metrics.RecordOperationDuration(ctx, "enqueue_batch", serviceLabel, time.Since(start))
	s.logger.InfoContext(ctx, "Batch job enqueued",
		attr.BatchID(batchID.String()),
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("unique_skipped", res.UniqueSkippedAsDuplicate),
	)
	return res.Job.ID, nil
}

// GetBatchJobs returns the process jobs recorded for a batch.
func (s *Service) GetBatchJobs(ctx context.Context, batchID uuid.UUID) ([]JobInfo, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "get_batch_jobs", serviceLabel)

	type riverJobRow struct {
		ID          int64      `bun:"id"`
		Kind        string     `bun:"kind"`
		State       string     `bun:"state"`
		ScheduledAt *time.Time `bun:"scheduled_at"`
		CreatedAt   time.Time  `bun:"created_at"`
		Attempt     int16      `bun:"attempt"`
		MaxAttempts int16      `bun:"max_attempts"`
	}

	var rows []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "scheduled_at", "created_at", "attempt", "max_attempts").
		Where("kind = ?", ProcessBatchJob{}.Kind()).
		Where("args->>'batch_id' = ?", batchID.String()).
		Order("created_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query batch jobs", attr.BatchID(batchID.String()), attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "get_batch_jobs", serviceLabel)
		return nil, fmt.Errorf("failed to query batch jobs: %w", err)
	}

	jobs := make([]JobInfo, len(rows))
	for i, row := range rows {
		scheduledAt := ""
		if row.ScheduledAt != nil {
			scheduledAt = row.ScheduledAt.Format(time.RFC3339)
		}
		jobs[i] = JobInfo{
			ID:          row.ID,
			Kind:        row.Kind,
			BatchID:     batchID.String(),
			State:       row.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   row.CreatedAt.Format(time.RFC3339),
			Attempt:     int(row.Attempt),
			MaxAttempts: int(row.MaxAttempts),
		}
	}

	s.metrics.RecordOperationSuccess(ctx, "get_batch_jobs", serviceLabel)
	s.metrics.RecordOperationDuration(ctx, "get_batch_jobs", serviceLabel, time.Since(start))
	return jobs, nil
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "health_check", serviceLabel)

	if s.client == nil {
		s.metrics.RecordOperationFailure(ctx, "health_check", serviceLabel)
		return fmt.Errorf("river client is nil")
	}
	if err := s.pool.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Queue service health check failed", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "health_check", serviceLabel)
		return fmt.Errorf("queue service health check failed: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "health_check", serviceLabel)
	return nil
}
