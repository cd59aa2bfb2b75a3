package duprhandlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	duprservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/application"
	duprqueue "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/queue"
	matchservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/application"
	"github.com/google/uuid"
)

// BatchQueue is the part of the job queue the HTTP surface uses.
type BatchQueue interface {
	EnqueueBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	GetBatchJobs(ctx context.Context, batchID uuid.UUID) ([]duprqueue.JobInfo, error)
	HealthCheck(ctx context.Context) error
}

// HTTPHandlers serves the organizer API and the rating-authority webhook.
type HTTPHandlers struct {
	service duprservice.Service
	matches matchservice.Service
	queue   BatchQueue
	logger  *slog.Logger
}

// NewHTTPHandlers creates the HTTP handlers. queue may be nil, in which case
// the batch job routes answer 503.
func NewHTTPHandlers(
	service duprservice.Service,
	matches matchservice.Service,
	queue BatchQueue,
	logger *slog.Logger,
) *HTTPHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandlers{
		service: service,
		matches: matches,
		queue:   queue,
		logger:  logger,
	}
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
}

const (
	maxRequestBody = 64 << 10
	maxWebhookBody = 1 << 20
)
