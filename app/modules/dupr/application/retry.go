package duprservice

import (
	"context"
	"errors"
	"fmt"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
)

// RetryFailed resubmits every unsubmitted match of an event that has a
// recorded error or is still pending. With nothing to retry it returns
// without contacting the Authority.
func (s *SubmissionService) RetryFailed(ctx context.Context, req RetryRequest) (*RetryResponse, error) {
	result, err := withTelemetry(s, ctx, "RetryFailed", req.EventID, func(ctx context.Context) (results.OperationResult[*RetryResponse, error], error) {
		if err := validateEvent(req.EventType, req.EventID); err != nil {
			return results.FailureResult[*RetryResponse, error](err), nil
		}

		retryable, err := s.matches.ListRetryable(ctx, s.idb(), req.EventType, req.EventID)
		if err != nil {
			return results.OperationResult[*RetryResponse, error]{}, fmt.Errorf("failed to list retryable matches: %w", err)
		}

		// Matches whose batch still has a pass scheduled are left to that batch.
		var free []*matchdomain.Match
		queued := 0
		live := liveBatches{}
		for _, m := range retryable {
			batchID, err := s.liveBatchOf(ctx, m, live)
			if err != nil {
				return results.OperationResult[*RetryResponse, error]{}, err
			}
			if batchID != "" {
				queued++
				continue
			}
			free = append(free, m)
		}
		if len(free) == 0 {
			msg := "no failed matches to retry"
			if queued > 0 {
				msg = fmt.Sprintf("%d match(es) already queued for a scheduled retry", queued)
			}
			return results.SuccessResult[*RetryResponse, error](&RetryResponse{QueuedCount: queued, Message: msg}), nil
		}

		batch, err := s.queueBatch(ctx, req.EventType, req.EventID, free[0].EventName, free)
		if err != nil {
			return results.OperationResult[*RetryResponse, error]{}, err
		}
		resp := &RetryResponse{RetriedCount: len(free), QueuedCount: queued, BatchID: batch.ID.String()}

		summary, err := s.processBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, duprdomain.ErrTokenUnavailable) {
				resp.Message = fmt.Sprintf("DUPR is unreachable (%s); retry queued for the next sweep", duprdomain.ErrTokenUnavailable)
				return results.SuccessResult[*RetryResponse, error](resp), nil
			}
			return results.OperationResult[*RetryResponse, error]{}, err
		}

		resp.SubmittedCount = summary.Counts.Submitted
		resp.FailedCount = summary.Counts.Failed
		resp.SkippedCount = summary.Counts.Skipped
		resp.Results = summary.Results
		resp.Message = fmt.Sprintf("retried %d match(es): %d submitted, %d failed", resp.RetriedCount, resp.SubmittedCount, resp.FailedCount)
		return results.SuccessResult[*RetryResponse, error](resp), nil
	})
	return unwrap(result, err)
}
