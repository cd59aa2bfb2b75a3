package duprservice

import (
	"context"
	"errors"
	"fmt"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
)

// RunRatingSync refreshes the ratings of every linked player and registers
// players not yet subscribed for rating-change pushes. A failed chunk is
// counted and skipped.
func (s *SubmissionService) RunRatingSync(ctx context.Context) (*SyncSummary, error) {
	result, err := withTelemetry(s, ctx, "RunRatingSync", "", func(ctx context.Context) (results.OperationResult[*SyncSummary, error], error) {
		linked, err := s.profiles.ListLinked(ctx, s.idb())
		if err != nil {
			return results.OperationResult[*SyncSummary, error]{}, fmt.Errorf("failed to list linked profiles: %w", err)
		}
		summary := &SyncSummary{Players: len(linked)}
		if len(linked) == 0 {
			return results.SuccessResult[*SyncSummary, error](summary), nil
		}

		token, err := s.tokens.Token(ctx)
		if err != nil {
			s.metrics.RecordTokenFailure(ctx)
			return results.OperationResult[*SyncSummary, error]{}, fmt.Errorf("%w: %v", duprdomain.ErrTokenUnavailable, err)
		}

		var ids, unsubscribed []string
		for _, p := range linked {
			if !p.HasDuprLink() {
				continue
			}
			ids = append(ids, *p.DuprID)
			if !p.DuprSubscribed {
				unsubscribed = append(unsubscribed, *p.DuprID)
			}
		}

		for _, chunk := range chunkIDs(ids, s.settings.LookupChunkSize) {
			ratings, err := s.authority.LookupPlayers(ctx, token, chunk)
			if err != nil {
				summary.Errors++
				s.logger.WarnContext(ctx, "Rating lookup failed", attr.Int("chunk_size", len(chunk)), attr.Error(err))
				continue
			}
			for _, r := range ratings {
				if err := s.storeRating(ctx, r); err != nil {
					summary.Errors++
					s.logger.WarnContext(ctx, "Failed to store synced rating", attr.DuprID(r.DuprID), attr.Error(err))
					continue
				}
				summary.Updated++
			}
		}
		s.metrics.RecordRatingUpdates(ctx, string(duprdomain.RatingSourceSync), summary.Updated)

		for _, chunk := range chunkIDs(unsubscribed, s.settings.LookupChunkSize) {
			if err := s.authority.SubscribeRatingChanges(ctx, token, chunk); err != nil {
				summary.Errors++
				s.logger.WarnContext(ctx, "Rating subscription failed", attr.Int("chunk_size", len(chunk)), attr.Error(err))
				continue
			}
			if err := s.profiles.MarkSubscribed(ctx, s.idb(), chunk); err != nil {
				summary.Errors++
				s.logger.WarnContext(ctx, "Failed to flag subscribed profiles", attr.Error(err))
				continue
			}
			summary.Subscribed += len(chunk)
		}

		s.logger.InfoContext(ctx, "Rating sync finished",
			attr.Int("players", summary.Players),
			attr.Int("updated", summary.Updated),
			attr.Int("subscribed", summary.Subscribed),
			attr.Int("errors", summary.Errors),
		)
		return results.SuccessResult[*SyncSummary, error](summary), nil
	})
	return unwrap(result, err)
}

func (s *SubmissionService) storeRating(ctx context.Context, r duprdomain.PlayerRating) error {
	now := s.now()
	if err := s.store.UpsertSnapshot(ctx, s.idb(), duprdomain.RatingSnapshot{
		DuprID:   r.DuprID,
		Singles:  r.Singles,
		Doubles:  r.Doubles,
		Source:   duprdomain.RatingSourceSync,
		SyncedAt: now,
	}); err != nil {
		return err
	}
	err := s.profiles.UpdateRatings(ctx, s.idb(), r.DuprID, r.Singles, r.Doubles, now)
	if err != nil && !errors.Is(err, userdb.ErrNoRowsAffected) {
		return err
	}
	return nil
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
