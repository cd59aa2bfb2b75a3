package duprservice

import (
	"context"
	"fmt"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
)

// RunCorrectionSweep resubmits matches whose official result changed after
// they were submitted. The identifier is unchanged, so the Authority treats
// the resubmission as an update of the same match.
func (s *SubmissionService) RunCorrectionSweep(ctx context.Context) (*CorrectionSummary, error) {
	result, err := withTelemetry(s, ctx, "RunCorrectionSweep", "", func(ctx context.Context) (results.OperationResult[*CorrectionSummary, error], error) {
		candidates, err := s.matches.ListNeedingCorrection(ctx, s.idb())
		if err != nil {
			return results.OperationResult[*CorrectionSummary, error]{}, fmt.Errorf("failed to list correction candidates: %w", err)
		}
		summary := &CorrectionSummary{Found: len(candidates)}

		now := s.now()
		due := candidates[:0]
		for _, m := range candidates {
			switch next, exhausted := s.correctionRetryAt(m); {
			case exhausted:
				summary.Exhausted++
			case next != nil && now.Before(*next):
				summary.Deferred++
			default:
				due = append(due, m)
			}
		}
		if len(due) == 0 {
			return results.SuccessResult[*CorrectionSummary, error](summary), nil
		}

		token, err := s.tokens.Token(ctx)
		if err != nil {
			s.metrics.RecordTokenFailure(ctx)
			return results.OperationResult[*CorrectionSummary, error]{}, fmt.Errorf("%w: %v", duprdomain.ErrTokenUnavailable, err)
		}

		for _, m := range due {
			if s.correct(ctx, token, m).Success {
				summary.Resubmitted++
			} else {
				summary.Failed++
			}
		}

		s.logger.InfoContext(ctx, "Correction sweep finished",
			attr.Int("found", summary.Found),
			attr.Int("resubmitted", summary.Resubmitted),
			attr.Int("failed", summary.Failed),
			attr.Int("deferred", summary.Deferred),
			attr.Int("exhausted", summary.Exhausted),
		)
		return results.SuccessResult[*CorrectionSummary, error](summary), nil
	})
	return unwrap(result, err)
}

// correctionRetryAt applies the batch retry policy to a failing correction:
// RetryCount counts failed attempts since the result changed, the first
// attempt runs immediately and at most MaxRetries retries follow.
func (s *SubmissionService) correctionRetryAt(m *matchdomain.Match) (*time.Time, bool) {
	failures := m.DUPR.RetryCount
	if failures == 0 || m.DUPR.LastAttemptAt == nil {
		return nil, false
	}
	next := s.settings.Retry.NextRetryAt(failures-1, *m.DUPR.LastAttemptAt)
	return next, next == nil
}

func (s *SubmissionService) correct(ctx context.Context, token string, m *matchdomain.Match) (result duprdomain.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = duprdomain.MatchResult{MatchID: m.ID, Error: fmt.Sprintf("internal error: %v", r)}
			s.logger.ErrorContext(ctx, "Recovered panic while correcting match",
				attr.MatchID(m.ID),
				attr.Any("panic", r),
			)
		}
	}()
	return s.attempt(ctx, token, m, EventInfo{Type: m.EventType, ID: m.EventID, Name: m.EventName})
}
