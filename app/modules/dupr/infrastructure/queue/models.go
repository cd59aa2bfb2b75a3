package duprqueue

// QueueName is the dedicated River queue for submission jobs.
const QueueName = "dupr"

// ProcessBatchJob runs one pass over a stored batch.
type ProcessBatchJob struct {
	BatchID string `json:"batch_id"`
}

// Kind returns the job type identifier for River
func (ProcessBatchJob) Kind() string { return "dupr_process_batch" }

// BatchSweepJob picks up pending, due and stale batches.
type BatchSweepJob struct{}

// Kind returns the job type identifier for River
func (BatchSweepJob) Kind() string { return "dupr_batch_sweep" }

// EventSweepJob submits every event holding ready matches.
type EventSweepJob struct{}

func (EventSweepJob) Kind() string { return "dupr_event_sweep" }

// CorrectionSweepJob resubmits corrected results.
type CorrectionSweepJob struct{}

func (CorrectionSweepJob) Kind() string { return "dupr_correction_sweep" }

// RatingSyncJob refreshes linked players' ratings.
type RatingSyncJob struct{}

func (RatingSyncJob) Kind() string { return "dupr_rating_sync" }

// JobInfo represents information about a queued job (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	BatchID     string `json:"batch_id,omitempty"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
