package duprdomain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle state of a submission batch.
type BatchStatus string

const (
	BatchStatusPending        BatchStatus = "pending"
	BatchStatusProcessing     BatchStatus = "processing"
	BatchStatusCompleted      BatchStatus = "completed"
	BatchStatusPartialFailure BatchStatus = "partial_failure"
)

// batchTransitions lists the allowed status moves. processing→pending only
// happens when a pass is abandoned before touching any match, and
// processing→processing is the re-pickup of a stale batch.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:        {BatchStatusProcessing},
	BatchStatusProcessing:     {BatchStatusCompleted, BatchStatusPartialFailure, BatchStatusPending, BatchStatusProcessing},
	BatchStatusPartialFailure: {BatchStatusProcessing},
	BatchStatusCompleted:      {},
}

// CanTransition reports whether a batch may move from s to next.
func (s BatchStatus) CanTransition(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	_, ok := batchTransitions[s]
	return ok
}

// MatchResult is the recorded outcome of one match inside a batch.
type MatchResult struct {
	MatchID    string `json:"matchId"`
	Success    bool   `json:"success"`
	ExternalID string `json:"externalId,omitempty"`
	Error      string `json:"error,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// Batch is a bounded list of matches submitted together for one event.
type Batch struct {
	ID          uuid.UUID
	EventType   string
	EventID     string
	EventName   string
	Status      BatchStatus
	MatchIDs    []string
	Results     []MatchResult
	RetryCount  int
	NextRetryAt *time.Time
	LastError   string
	StartedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Live reports whether the batch will still be processed: it is queued,
// running, or waiting on a scheduled retry.
func (b *Batch) Live() bool {
	switch b.Status {
	case BatchStatusPending, BatchStatusProcessing:
		return true
	case BatchStatusPartialFailure:
		return b.NextRetryAt != nil
	}
	return false
}

// Succeeded returns the match ids that already have a successful result.
func (b *Batch) Succeeded() map[string]bool {
	done := make(map[string]bool, len(b.Results))
	for _, r := range b.Results {
		if r.Success || r.Skipped {
			done[r.MatchID] = true
		}
	}
	return done
}

// MergeResults replaces earlier results for the same match with newer ones,
// keeping the batch's match order.
func (b *Batch) MergeResults(latest []MatchResult) {
	byID := make(map[string]MatchResult, len(b.Results)+len(latest))
	for _, r := range b.Results {
		byID[r.MatchID] = r
	}
	for _, r := range latest {
		byID[r.MatchID] = r
	}
	merged := make([]MatchResult, 0, len(byID))
	for _, id := range b.MatchIDs {
		if r, ok := byID[id]; ok {
			merged = append(merged, r)
		}
	}
	b.Results = merged
}

// Counts tallies the results of a batch.
type Counts struct {
	Submitted int `json:"submittedCount"`
	Failed    int `json:"failedCount"`
	Skipped   int `json:"skippedCount"`
	Duplicate int `json:"duplicateCount"`
}

// Tally counts results. Duplicates count as submitted.
func Tally(results []MatchResult) Counts {
	var c Counts
	for _, r := range results {
		switch {
		case r.Skipped:
			c.Skipped++
		case r.Success:
			c.Submitted++
			if r.Duplicate {
				c.Duplicate++
			}
		default:
			c.Failed++
		}
	}
	return c
}

// RetryPolicy is a fixed backoff table bounded by a retry count.
type RetryPolicy struct {
	Backoff    []time.Duration
	MaxRetries int
}

// DefaultRetryPolicy escalates 1, 2 and 3 minutes for at most three retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff:    []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute},
		MaxRetries: 3,
	}
}

// NextRetryAt schedules the next pass after a partial failure, or returns nil
// when the retry budget is spent.
func (p RetryPolicy) NextRetryAt(retryCount int, now time.Time) *time.Time {
	if retryCount >= p.MaxRetries || len(p.Backoff) == 0 {
		return nil
	}
	idx := min(retryCount, len(p.Backoff)-1)
	next := now.Add(p.Backoff[idx])
	return &next
}

// Exhausted reports whether a batch has used its whole retry budget.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxRetries
}
