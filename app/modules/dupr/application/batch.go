package duprservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlekSi/pointer"
	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	duprmetrics "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/metrics"
	duprdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/repositories"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
	"github.com/google/uuid"
)

// SubmitMatches selects the eligible matches of an event, queues them as a
// batch and processes it in the same invocation.
func (s *SubmissionService) SubmitMatches(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	result, err := withTelemetry(s, ctx, "SubmitMatches", req.EventID, func(ctx context.Context) (results.OperationResult[*SubmitResponse, error], error) {
		if err := validateEvent(req.EventType, req.EventID); err != nil {
			return results.FailureResult[*SubmitResponse, error](err), nil
		}
		resp, err := s.submit(ctx, req)
		if err != nil && !errors.Is(err, duprdomain.ErrTokenUnavailable) {
			return results.OperationResult[*SubmitResponse, error]{}, err
		}
		return results.SuccessResult[*SubmitResponse, error](resp), nil
	})
	return unwrap(result, err)
}

// ProcessBatch runs one pass over a stored batch.
func (s *SubmissionService) ProcessBatch(ctx context.Context, batchID uuid.UUID) (*BatchSummary, error) {
	result, err := withTelemetry(s, ctx, "ProcessBatch", batchID.String(), func(ctx context.Context) (results.OperationResult[*BatchSummary, error], error) {
		batch, err := s.store.GetBatch(ctx, s.idb(), batchID)
		if err != nil {
			if errors.Is(err, duprdb.ErrNotFound) {
				return results.FailureResult[*BatchSummary, error](ErrBatchNotFound), nil
			}
			return results.OperationResult[*BatchSummary, error]{}, err
		}
		summary, err := s.processBatch(ctx, batch)
		if errors.Is(err, ErrBatchNotClaimable) {
			return results.FailureResult[*BatchSummary, error](err), nil
		}
		if err != nil {
			return results.OperationResult[*BatchSummary, error]{}, err
		}
		return results.SuccessResult[*BatchSummary, error](summary), nil
	})
	return unwrap(result, err)
}

func validateEvent(eventType matchdomain.EventType, eventID string) error {
	if !eventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidRequest, eventType)
	}
	if eventID == "" {
		return fmt.Errorf("%w: eventId is required", ErrInvalidRequest)
	}
	return nil
}

type selection struct {
	eligible   []*matchdomain.Match
	ineligible []IneligibleMatch
	queued     []IneligibleMatch
	skipped    int
}

// submit is shared by the organizer request and the event sweep. When the
// credential exchange fails it returns the response together with an error
// wrapping ErrTokenUnavailable; the batch stays queued for the next sweep.
func (s *SubmissionService) submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	sel, err := s.selectMatches(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &SubmitResponse{
		EligibleCount:   len(sel.eligible),
		IneligibleCount: len(sel.ineligible),
		SkippedCount:    sel.skipped + len(sel.queued),
		Ineligible:      sel.ineligible,
		Queued:          sel.queued,
	}
	if len(sel.eligible) == 0 {
		resp.Message = "no eligible matches to submit"
		if len(sel.queued) > 0 {
			resp.Message = fmt.Sprintf("no eligible matches to submit; %d match(es) already queued", len(sel.queued))
		}
		return resp, nil
	}

	name := req.EventName
	if name == "" {
		name = sel.eligible[0].EventName
	}
	batch, err := s.queueBatch(ctx, req.EventType, req.EventID, name, sel.eligible)
	if err != nil {
		return nil, err
	}
	resp.BatchID = batch.ID.String()

	summary, err := s.processBatch(ctx, batch)
	if err != nil {
		if errors.Is(err, duprdomain.ErrTokenUnavailable) {
			resp.Message = fmt.Sprintf("DUPR is unreachable (%s); %d match(es) queued for the next sweep", duprdomain.ErrTokenUnavailable, len(sel.eligible))
			return resp, err
		}
		return nil, err
	}

	resp.SubmittedCount = summary.Counts.Submitted
	resp.FailedCount = summary.Counts.Failed
	resp.SkippedCount += summary.Counts.Skipped
	resp.Success = summary.Counts.Failed == 0
	switch {
	case resp.Success:
		resp.Message = fmt.Sprintf("submitted %d match(es) to DUPR", resp.SubmittedCount)
	case summary.Exhausted:
		resp.Message = fmt.Sprintf("%d match(es) failed and need manual correction", resp.FailedCount)
	default:
		resp.Message = fmt.Sprintf("%d match(es) failed, retry scheduled", resp.FailedCount)
	}
	return resp, nil
}

// selectMatches filters the requested matches, or every completed official
// match of the event, down to those classified ready.
func (s *SubmissionService) selectMatches(ctx context.Context, req SubmitRequest) (*selection, error) {
	var candidates []*matchdomain.Match
	sel := &selection{}

	if len(req.MatchIDs) > 0 {
		seen := make(map[string]bool, len(req.MatchIDs))
		for _, id := range req.MatchIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			m, err := s.loadMatch(ctx, id)
			if err != nil {
				return nil, err
			}
			if m == nil {
				sel.ineligible = append(sel.ineligible, IneligibleMatch{MatchID: id, Reason: "match not found"})
				continue
			}
			if m.EventType != req.EventType || m.EventID != req.EventID {
				sel.ineligible = append(sel.ineligible, IneligibleMatch{MatchID: id, Reason: "match belongs to another event"})
				continue
			}
			candidates = append(candidates, m)
		}
	} else {
		all, err := s.matches.ListOfficialCompleted(ctx, s.idb(), req.EventType, req.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list event matches: %w", err)
		}
		candidates = all
	}

	live := liveBatches{}
	for _, m := range candidates {
		switch category := matchdomain.Classify(*m); category {
		case matchdomain.CategoryReadyForDUPR:
			batchID, err := s.liveBatchOf(ctx, m, live)
			if err != nil {
				return nil, err
			}
			if batchID != "" {
				sel.queued = append(sel.queued, IneligibleMatch{MatchID: m.ID, Category: category, Reason: "already queued in batch " + batchID})
				continue
			}
			sel.eligible = append(sel.eligible, m)
		case matchdomain.CategorySubmitted:
			sel.skipped++
		default:
			sel.ineligible = append(sel.ineligible, IneligibleMatch{
				MatchID:  m.ID,
				Category: category,
				Reason:   ineligibleReason(m, category),
			})
		}
	}
	return sel, nil
}

// liveBatches caches batch liveness by id for one selection pass.
type liveBatches map[string]bool

// liveBatchOf returns the id of the unfinished batch m is linked to, or ""
// when m is free to join a new batch. A match is in at most one live batch.
func (s *SubmissionService) liveBatchOf(ctx context.Context, m *matchdomain.Match, cache liveBatches) (string, error) {
	batchID := m.DUPR.BatchID
	if batchID == "" {
		return "", nil
	}
	live, ok := cache[batchID]
	if !ok {
		id, err := uuid.Parse(batchID)
		if err != nil {
			cache[batchID] = false
			return "", nil
		}
		batch, err := s.store.GetBatch(ctx, s.idb(), id)
		switch {
		case errors.Is(err, duprdb.ErrNotFound):
			live = false
		case err != nil:
			return "", fmt.Errorf("failed to load batch %s of match %s: %w", batchID, m.ID, err)
		default:
			live = batch.Live()
		}
		cache[batchID] = live
	}
	if !live {
		return "", nil
	}
	return batchID, nil
}

func ineligibleReason(m *matchdomain.Match, category matchdomain.Category) string {
	switch category {
	case matchdomain.CategoryFailed:
		return "previous submission failed: " + m.DUPR.LastError
	case matchdomain.CategoryBlocked:
		switch {
		case m.DUPR.NeedsCorrection:
			return "awaiting correction resubmission"
		case m.SideA.IsPlaceholder() || m.SideB.IsPlaceholder():
			return "participants are not decided"
		case !m.DUPR.Eligible:
			return "not marked eligible for DUPR"
		case !m.Locked:
			return "result is not locked"
		}
		return "result is not official"
	case matchdomain.CategoryNeedsReview:
		return "score proposal needs review"
	case matchdomain.CategoryProposed:
		return "score is only proposed"
	}
	return "no score recorded"
}

// queueBatch stores a pending batch and links its matches to it.
func (s *SubmissionService) queueBatch(ctx context.Context, eventType matchdomain.EventType, eventID, eventName string, ms []*matchdomain.Match) (*duprdomain.Batch, error) {
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.ID)
	}
	batch := &duprdomain.Batch{
		ID:        uuid.New(),
		EventType: string(eventType),
		EventID:   eventID,
		EventName: eventName,
		Status:    duprdomain.BatchStatusPending,
		MatchIDs:  ids,
		Results:   []duprdomain.MatchResult{},
		CreatedAt: s.now(),
	}
	if err := s.store.CreateBatch(ctx, s.idb(), batch); err != nil {
		return nil, err
	}

	for _, id := range ids {
		update := matchdb.SubmissionUpdate{Pending: pointer.To(true), BatchID: pointer.To(batch.ID.String())}
		if err := s.matches.UpdateSubmission(ctx, s.idb(), id, update); err != nil {
			s.logger.WarnContext(ctx, "Failed to link match to batch",
				attr.MatchID(id),
				attr.BatchID(batch.ID.String()),
				attr.Error(err),
			)
		}
	}

	s.logger.InfoContext(ctx, "Submission batch queued",
		attr.BatchID(batch.ID.String()),
		attr.Event(batch.EventType, batch.EventID),
		attr.Int("match_count", len(ids)),
	)
	return batch, nil
}

// claimable reports whether batch may be picked up at now.
func (s *SubmissionService) claimable(batch *duprdomain.Batch, now time.Time) bool {
	if !batch.Status.CanTransition(duprdomain.BatchStatusProcessing) {
		return false
	}
	if batch.Status == duprdomain.BatchStatusProcessing {
		return batch.StartedAt != nil && batch.StartedAt.Before(now.Add(-s.settings.StaleAfter))
	}
	return true
}

// processBatch claims a batch, fetches one token and submits every match
// without a successful result yet, one after another.
func (s *SubmissionService) processBatch(ctx context.Context, batch *duprdomain.Batch) (*BatchSummary, error) {
	now := s.now()
	if !s.claimable(batch, now) {
		return nil, fmt.Errorf("%w: batch %s is %s", ErrBatchNotClaimable, batch.ID, batch.Status)
	}

	observed := batch.Status
	startedAt := now.Truncate(time.Microsecond)
	if err := s.store.ClaimBatch(ctx, s.idb(), batch.ID, observed, batch.StartedAt, startedAt); err != nil {
		if errors.Is(err, duprdb.ErrNoRowsAffected) {
			return nil, fmt.Errorf("%w: batch %s was claimed by another worker", ErrBatchNotClaimable, batch.ID)
		}
		return nil, err
	}
	batch.Status = duprdomain.BatchStatusProcessing
	batch.StartedAt = &startedAt

	// A pass over a batch that already ran once counts against the retry budget.
	retryPass := observed == duprdomain.BatchStatusPartialFailure ||
		(observed == duprdomain.BatchStatusProcessing && len(batch.Results) > 0)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.metrics.RecordTokenFailure(ctx)
		release := observed
		if observed == duprdomain.BatchStatusProcessing {
			release = duprdomain.BatchStatusPending
		}
		if relErr := s.store.ReleaseBatch(ctx, s.idb(), batch.ID, release, duprdomain.ErrTokenUnavailable.Error()); relErr != nil {
			s.logger.ErrorContext(ctx, "Failed to release batch after token failure",
				attr.BatchID(batch.ID.String()),
				attr.Error(relErr),
			)
		}
		s.logger.WarnContext(ctx, "Batch pass aborted, DUPR token unavailable",
			attr.BatchID(batch.ID.String()),
			attr.Error(err),
		)
		if !errors.Is(err, duprdomain.ErrTokenUnavailable) {
			err = fmt.Errorf("%w: %v", duprdomain.ErrTokenUnavailable, err)
		}
		return nil, err
	}

	done := batch.Succeeded()
	var latest []duprdomain.MatchResult
	for _, matchID := range batch.MatchIDs {
		if done[matchID] {
			continue
		}
		latest = append(latest, s.processMatch(ctx, token, batch, matchID))
	}
	batch.MergeResults(latest)

	if retryPass {
		batch.RetryCount++
	}
	counts := duprdomain.Tally(batch.Results)
	finished := s.now()
	if counts.Failed == 0 {
		batch.Status = duprdomain.BatchStatusCompleted
		batch.NextRetryAt = nil
		batch.LastError = ""
	} else {
		batch.Status = duprdomain.BatchStatusPartialFailure
		batch.NextRetryAt = s.settings.Retry.NextRetryAt(batch.RetryCount, finished)
		batch.LastError = fmt.Sprintf("%d of %d match(es) failed", counts.Failed, len(batch.MatchIDs))
	}
	if err := s.store.SaveOutcome(ctx, s.idb(), batch); err != nil {
		return nil, fmt.Errorf("failed to save batch outcome: %w", err)
	}
	s.metrics.RecordBatchOutcome(ctx, string(batch.Status))

	exhausted := batch.Status == duprdomain.BatchStatusPartialFailure && batch.NextRetryAt == nil
	s.logger.InfoContext(ctx, "Batch pass finished",
		attr.BatchID(batch.ID.String()),
		attr.String("status", string(batch.Status)),
		attr.Int("submitted", counts.Submitted),
		attr.Int("failed", counts.Failed),
		attr.Int("skipped", counts.Skipped),
		attr.Int("retry_count", batch.RetryCount),
		attr.Bool("exhausted", exhausted),
	)

	return &BatchSummary{
		BatchID:     batch.ID.String(),
		Status:      batch.Status,
		Counts:      counts,
		RetryCount:  batch.RetryCount,
		NextRetryAt: batch.NextRetryAt,
		Exhausted:   exhausted,
		Results:     batch.Results,
	}, nil
}

// processMatch handles one batch entry. A panic or failure is recorded as a
// failed result and never escapes to the batch loop.
func (s *SubmissionService) processMatch(ctx context.Context, token string, batch *duprdomain.Batch, matchID string) (result duprdomain.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = duprdomain.MatchResult{MatchID: matchID, Error: fmt.Sprintf("internal error: %v", r)}
			s.logger.ErrorContext(ctx, "Recovered panic while processing match",
				attr.MatchID(matchID),
				attr.BatchID(batch.ID.String()),
				attr.Any("panic", r),
			)
			s.metrics.RecordSubmission(ctx, duprmetrics.OutcomeFailed)
		}
	}()

	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		s.metrics.RecordSubmission(ctx, duprmetrics.OutcomeFailed)
		return duprdomain.MatchResult{MatchID: matchID, Error: err.Error()}
	}
	if m == nil {
		s.metrics.RecordSubmission(ctx, duprmetrics.OutcomeFailed)
		return duprdomain.MatchResult{MatchID: matchID, Error: "match not found"}
	}
	if m.DUPR.Submitted || m.ScoreState == matchdomain.ScoreStateSubmitted {
		if m.DUPR.Pending {
			s.updateMatch(ctx, m.ID, matchdb.SubmissionUpdate{Pending: pointer.To(false)})
		}
		s.metrics.RecordSubmission(ctx, duprmetrics.OutcomeSkipped)
		return duprdomain.MatchResult{MatchID: matchID, Skipped: true}
	}

	event := EventInfo{Type: matchdomain.EventType(batch.EventType), ID: batch.EventID, Name: batch.EventName}
	return s.attempt(ctx, token, m, event)
}

// attempt converts and submits one match and records the outcome on it.
func (s *SubmissionService) attempt(ctx context.Context, token string, m *matchdomain.Match, event EventInfo) duprdomain.MatchResult {
	result := duprdomain.MatchResult{MatchID: m.ID}

	conv, err := s.converter.Convert(ctx, s.idb(), m, event)
	if err != nil {
		msg := err.Error()
		if _, ok := AsConversionError(err); !ok {
			msg = "conversion failed: " + msg
		}
		result.Error = msg
		s.recordFailure(ctx, m, msg)
		return result
	}

	outcome := s.authority.SubmitMatch(ctx, token, conv.Payload)
	if !outcome.Success {
		result.Error = outcome.Error
		s.recordFailure(ctx, m, outcome.Error)
		return result
	}

	result.Success = true
	result.ExternalID = outcome.ExternalID
	result.Duplicate = outcome.Duplicate
	s.recordSuccess(ctx, m, conv.Payload.Identifier, outcome)
	return result
}

func (s *SubmissionService) recordSuccess(ctx context.Context, m *matchdomain.Match, identifier string, outcome duprdomain.SubmitOutcome) {
	now := s.now()
	update := matchdb.SubmissionUpdate{
		Submitted:     pointer.To(true),
		SubmissionID:  pointer.To(identifier),
		SubmittedAt:   pointer.To(now),
		LastError:     pointer.To(""),
		Pending:       pointer.To(false),
		LastAttemptAt: pointer.To(now),
		ScoreState:    pointer.To(matchdomain.ScoreStateSubmitted),
	}
	if m.DUPR.NeedsCorrection {
		update.NeedsCorrection = pointer.To(false)
		update.CorrectionSubmitted = pointer.To(true)
	}
	s.updateMatch(ctx, m.ID, update)

	outcomeLabel := duprmetrics.OutcomeSubmitted
	if outcome.Duplicate {
		outcomeLabel = duprmetrics.OutcomeDuplicate
	}
	s.metrics.RecordSubmission(ctx, outcomeLabel)
	s.logger.InfoContext(ctx, "Match submitted to DUPR",
		attr.MatchID(m.ID),
		attr.String("identifier", identifier),
		attr.Bool("duplicate", outcome.Duplicate),
		attr.Bool("correction", m.DUPR.NeedsCorrection),
	)
}

func (s *SubmissionService) recordFailure(ctx context.Context, m *matchdomain.Match, msg string) {
	now := s.now()
	s.updateMatch(ctx, m.ID, matchdb.SubmissionUpdate{
		LastError:     pointer.To(msg),
		Pending:       pointer.To(false),
		RetryCount:    pointer.To(m.DUPR.RetryCount + 1),
		LastAttemptAt: pointer.To(now),
	})
	s.metrics.RecordSubmission(ctx, duprmetrics.OutcomeFailed)
	s.logger.WarnContext(ctx, "Match submission failed",
		attr.MatchID(m.ID),
		attr.String("reason", msg),
	)
}

// updateMatch writes submission fields. A failed write is logged; the
// deterministic identifier makes the next attempt safe either way.
func (s *SubmissionService) updateMatch(ctx context.Context, matchID string, update matchdb.SubmissionUpdate) {
	if err := s.matches.UpdateSubmission(ctx, s.idb(), matchID, update); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update match submission state",
			attr.MatchID(matchID),
			attr.Error(err),
		)
	}
}
