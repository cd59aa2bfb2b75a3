package duprservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	duprmetrics "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/metrics"
	duprdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/repositories"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
)

// IngestWebhook deduplicates and applies one Authority push. Every failure is
// reported in the outcome only; the caller acknowledges regardless.
func (s *SubmissionService) IngestWebhook(ctx context.Context, raw []byte) WebhookOutcome {
	var outcome WebhookOutcome
	result, err := withTelemetry(s, ctx, "IngestWebhook", "", func(ctx context.Context) (results.OperationResult[WebhookOutcome, error], error) {
		return results.SuccessResult[WebhookOutcome, error](s.ingest(ctx, raw, &outcome)), nil
	})
	if err == nil && result.Success != nil {
		return *result.Success
	}
	// A panic mid-ingest still leaves whatever was filled in so far.
	if err != nil {
		outcome.Error = err.Error()
	}
	s.metrics.RecordWebhook(ctx, outcome.EventType, duprmetrics.WebhookFailed)
	return outcome
}

func (s *SubmissionService) ingest(ctx context.Context, raw []byte, outcome *WebhookOutcome) WebhookOutcome {
	payload, parseErr := duprdomain.ParseWebhook(raw)
	outcome.DedupeKey = duprdomain.DedupeKey(payload, raw)
	outcome.EventType = string(payload.Event)

	logger := s.logger.With(attr.String("dedupe_key", outcome.DedupeKey), attr.String("event_type", outcome.EventType))

	existing, err := s.store.GetWebhookEvent(ctx, s.idb(), outcome.DedupeKey)
	switch {
	case err == nil && existing != nil:
		outcome.Duplicate = true
		s.metrics.RecordWebhook(ctx, outcome.EventType, duprmetrics.WebhookDuplicate)
		logger.InfoContext(ctx, "Duplicate webhook acknowledged")
		return *outcome
	case err != nil && !errors.Is(err, duprdb.ErrNotFound):
		logger.WarnContext(ctx, "Failed to look up webhook event, processing anyway", attr.Error(err))
	}

	event := &duprdomain.WebhookEvent{
		DedupeKey:  outcome.DedupeKey,
		EventType:  outcome.EventType,
		ClientID:   string(payload.ClientID),
		DuprID:     string(payload.Message.DuprID),
		Payload:    storablePayload(raw),
		ReceivedAt: s.now(),
	}
	stored := false
	inserted, err := s.store.InsertWebhookEvent(ctx, s.idb(), event)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Failed to store webhook event", attr.Error(err))
	case !inserted:
		outcome.Duplicate = true
		s.metrics.RecordWebhook(ctx, outcome.EventType, duprmetrics.WebhookDuplicate)
		logger.InfoContext(ctx, "Webhook stored concurrently by another delivery")
		return *outcome
	default:
		stored = true
	}

	var procErr error
	metricResult := duprmetrics.WebhookProcessed
	if parseErr != nil {
		procErr = fmt.Errorf("invalid payload: %w", parseErr)
	} else {
		switch payload.Event {
		case duprdomain.WebhookEventRating:
			procErr = s.applyRating(ctx, payload)
		case duprdomain.WebhookEventRegistration, duprdomain.WebhookEventValidation, duprdomain.WebhookEventLogin:
		default:
			metricResult = duprmetrics.WebhookIgnored
		}
	}

	note := ""
	if procErr != nil {
		note = procErr.Error()
		outcome.Error = note
		metricResult = duprmetrics.WebhookFailed
		logger.ErrorContext(ctx, "Failed to process webhook", attr.Error(procErr))
	} else {
		outcome.Processed = true
		if metricResult == duprmetrics.WebhookIgnored {
			note = fmt.Sprintf("unhandled event type %q", outcome.EventType)
		}
	}

	if stored {
		if err := s.store.MarkWebhookProcessed(ctx, s.idb(), outcome.DedupeKey, note, s.now()); err != nil {
			logger.WarnContext(ctx, "Failed to mark webhook processed", attr.Error(err))
		}
	}
	s.metrics.RecordWebhook(ctx, outcome.EventType, metricResult)
	return *outcome
}

// applyRating writes the pushed ratings to the snapshot and the linked
// profile. Unknown players only get a snapshot.
func (s *SubmissionService) applyRating(ctx context.Context, payload duprdomain.WebhookPayload) error {
	duprID := string(payload.Message.DuprID)
	if duprID == "" {
		return errors.New("rating event without duprId")
	}
	now := s.now()
	singles := payload.Message.Rating.Singles.Float()
	doubles := payload.Message.Rating.Doubles.Float()

	if err := s.store.UpsertSnapshot(ctx, s.idb(), duprdomain.RatingSnapshot{
		DuprID:   duprID,
		Singles:  singles,
		Doubles:  doubles,
		Source:   duprdomain.RatingSourceWebhook,
		SyncedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to upsert rating snapshot: %w", err)
	}

	if err := s.profiles.UpdateRatings(ctx, s.idb(), duprID, singles, doubles, now); err != nil && !errors.Is(err, userdb.ErrNoRowsAffected) {
		return fmt.Errorf("failed to update player ratings: %w", err)
	}
	s.metrics.RecordRatingUpdates(ctx, string(duprdomain.RatingSourceWebhook), 1)
	s.logger.InfoContext(ctx, "Rating updated from webhook", attr.DuprID(duprID))
	return nil
}

// storablePayload keeps JSON bodies as-is and wraps anything else in a JSON string.
func storablePayload(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	encoded, err := json.Marshal(string(raw))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return encoded
}
