package duprservice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const ratingBody = `{"event":"RATING","clientId":"club-77","message":{"duprId":"GX4J2K","name":"Pat Doe","rating":{"singles":"4.25","doubles":"NR","matchId":9912}}}`

func TestIngestWebhook_RatingUpdatesSnapshotAndProfile(t *testing.T) {
	h := newHarness(t)
	h.profiles = NewFakeProfileRepo(linkedProfile("u1", "GX4J2K"))
	h.svc.profiles = h.profiles

	out := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))

	assert.True(t, out.Processed)
	assert.False(t, out.Duplicate)
	assert.Empty(t, out.Error)
	assert.Equal(t, "RATING", out.EventType)
	assert.True(t, strings.HasPrefix(out.DedupeKey, "n:"))

	snap, err := h.store.GetSnapshot(context.Background(), nil, "GX4J2K")
	require.NoError(t, err)
	require.NotNil(t, snap.Singles)
	assert.Equal(t, 4.25, *snap.Singles)
	assert.Nil(t, snap.Doubles)
	assert.Equal(t, duprdomain.RatingSourceWebhook, snap.Source)

	require.Len(t, h.profiles.ratings, 1)
	assert.Equal(t, "GX4J2K", h.profiles.ratings[0].DuprID)

	stored := h.store.Webhook(out.DedupeKey)
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
	assert.Empty(t, stored.ProcessingError)
	assert.JSONEq(t, ratingBody, string(stored.Payload))
}

func TestIngestWebhook_IdenticalDeliveryAppliedOnce(t *testing.T) {
	h := newHarness(t)

	first := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))
	second := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Processed)
	assert.Equal(t, first.DedupeKey, second.DedupeKey)
	assert.Equal(t, 1, h.store.SnapshotSaves())
}

func TestIngestWebhook_EquivalentRatingFormsShareKey(t *testing.T) {
	h := newHarness(t)
	numeric := strings.Replace(ratingBody, `"4.25"`, `4.250`, 1)

	first := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))
	second := h.svc.IngestWebhook(context.Background(), []byte(numeric))

	assert.Equal(t, first.DedupeKey, second.DedupeKey)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, h.store.SnapshotSaves())
}

func TestIngestWebhook_StorageFailureStillProcesses(t *testing.T) {
	h := newHarness(t)
	h.store.GetWebhookEventFunc = func(ctx context.Context, db bun.IDB, key string) (*duprdomain.WebhookEvent, error) {
		return nil, errors.New("connection refused")
	}
	h.store.InsertWebhookEventFunc = func(ctx context.Context, db bun.IDB, event *duprdomain.WebhookEvent) (bool, error) {
		return false, errors.New("connection refused")
	}

	out := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))

	assert.True(t, out.Processed)
	assert.Empty(t, out.Error)
	assert.Equal(t, 1, h.store.SnapshotSaves())
	assert.NotContains(t, h.store.Trace(), "MarkWebhookProcessed")
}

func TestIngestWebhook_MarkFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.store.MarkWebhookProcessedFunc = func(ctx context.Context, db bun.IDB, key, processingError string, at time.Time) error {
		return errors.New("deadlock detected")
	}

	out := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))
	assert.True(t, out.Processed)
	assert.Empty(t, out.Error)
}

func TestIngestWebhook_InvalidJSON(t *testing.T) {
	h := newHarness(t)

	out := h.svc.IngestWebhook(context.Background(), []byte("event=RATING&duprId=1"))

	assert.False(t, out.Processed)
	assert.Contains(t, out.Error, "invalid payload")
	assert.True(t, strings.HasPrefix(out.DedupeKey, "r:"))
	assert.Equal(t, 0, h.store.SnapshotSaves())

	stored := h.store.Webhook(out.DedupeKey)
	require.NotNil(t, stored)
	var body string
	require.NoError(t, json.Unmarshal(stored.Payload, &body))
	assert.Equal(t, "event=RATING&duprId=1", body)
	assert.True(t, stored.Processed)
	assert.Contains(t, stored.ProcessingError, "invalid payload")
}

func TestIngestWebhook_NonRatingEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
		note string
	}{
		{name: "registration", body: `{"event":"REGISTRATION","clientId":"club-77","message":{"duprId":"AB12"}}`},
		{name: "validation", body: `{"event":"validation","clientId":"club-77"}`},
		{name: "login", body: `{"event":"LOGIN","message":{"duprId":"AB12"}}`},
		{name: "unknown", body: `{"event":"PROFILE_MERGE","message":{"duprId":"AB12"}}`, note: `unhandled event type "PROFILE_MERGE"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			out := h.svc.IngestWebhook(context.Background(), []byte(tt.body))

			assert.True(t, out.Processed)
			assert.Empty(t, out.Error)
			assert.Equal(t, 0, h.store.SnapshotSaves())
			stored := h.store.Webhook(out.DedupeKey)
			require.NotNil(t, stored)
			assert.True(t, stored.Processed)
			assert.Equal(t, tt.note, stored.ProcessingError)
		})
	}
}

func TestIngestWebhook_RatingWithoutPlayer(t *testing.T) {
	h := newHarness(t)

	out := h.svc.IngestWebhook(context.Background(), []byte(`{"event":"RATING","message":{"rating":{"singles":"3.9"}}}`))

	assert.False(t, out.Processed)
	assert.Equal(t, "rating event without duprId", out.Error)
	assert.Equal(t, 0, h.store.SnapshotSaves())
}

func TestIngestWebhook_ConcurrentInsertIsDuplicate(t *testing.T) {
	h := newHarness(t)
	h.store.InsertWebhookEventFunc = func(ctx context.Context, db bun.IDB, event *duprdomain.WebhookEvent) (bool, error) {
		return false, nil
	}

	out := h.svc.IngestWebhook(context.Background(), []byte(ratingBody))
	assert.True(t, out.Duplicate)
	assert.Equal(t, 0, h.store.SnapshotSaves())
}
