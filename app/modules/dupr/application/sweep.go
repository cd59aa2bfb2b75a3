package duprservice

import (
	"context"
	"errors"
	"fmt"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
)

// ProcessDueBatches picks up pending batches, partial failures whose retry
// time has passed, and processing batches left stale by an earlier
// invocation. A token failure ends the pass; the next tick tries again.
func (s *SubmissionService) ProcessDueBatches(ctx context.Context) (*SweepSummary, error) {
	result, err := withTelemetry(s, ctx, "ProcessDueBatches", "", func(ctx context.Context) (results.OperationResult[*SweepSummary, error], error) {
		now := s.now()
		due, err := s.store.ListDue(ctx, s.idb(), now, s.settings.Retry.MaxRetries, now.Add(-s.settings.StaleAfter))
		if err != nil {
			return results.OperationResult[*SweepSummary, error]{}, fmt.Errorf("failed to list due batches: %w", err)
		}

		summary := &SweepSummary{Picked: len(due)}
		for _, batch := range due {
			_, err := s.processBatch(ctx, batch)
			switch {
			case err == nil:
				summary.Processed++
			case errors.Is(err, ErrBatchNotClaimable):
				s.logger.InfoContext(ctx, "Skipping batch", attr.BatchID(batch.ID.String()), attr.Error(err))
			case errors.Is(err, duprdomain.ErrTokenUnavailable):
				summary.Errors++
				s.logger.WarnContext(ctx, "Queue sweep aborted, DUPR token unavailable", attr.Error(err))
				return results.SuccessResult[*SweepSummary, error](summary), nil
			default:
				summary.Errors++
				s.logger.ErrorContext(ctx, "Failed to process due batch", attr.BatchID(batch.ID.String()), attr.Error(err))
			}
		}
		return results.SuccessResult[*SweepSummary, error](summary), nil
	})
	return unwrap(result, err)
}

// SweepReadyEvents submits the ready matches of every event that has any.
func (s *SubmissionService) SweepReadyEvents(ctx context.Context) (*SweepSummary, error) {
	result, err := withTelemetry(s, ctx, "SweepReadyEvents", "", func(ctx context.Context) (results.OperationResult[*SweepSummary, error], error) {
		events, err := s.matches.ListReadyEvents(ctx, s.idb())
		if err != nil {
			return results.OperationResult[*SweepSummary, error]{}, fmt.Errorf("failed to list ready events: %w", err)
		}

		summary := &SweepSummary{Picked: len(events)}
		for _, ev := range events {
			resp, err := s.submit(ctx, SubmitRequest{EventType: ev.EventType, EventID: ev.EventID})
			if err != nil {
				summary.Errors++
				if errors.Is(err, duprdomain.ErrTokenUnavailable) {
					s.logger.WarnContext(ctx, "Event sweep aborted, DUPR token unavailable", attr.Error(err))
					break
				}
				s.logger.ErrorContext(ctx, "Failed to submit event", attr.Event(string(ev.EventType), ev.EventID), attr.Error(err))
				continue
			}
			summary.Processed++
			s.logger.InfoContext(ctx, "Event swept",
				attr.Event(string(ev.EventType), ev.EventID),
				attr.Int("submitted", resp.SubmittedCount),
				attr.Int("failed", resp.FailedCount),
			)
		}
		return results.SuccessResult[*SweepSummary, error](summary), nil
	})
	return unwrap(result, err)
}
