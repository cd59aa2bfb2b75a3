package duprhandlers

import (
	"io"
	"net/http"

	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
)

// HandleWebhookProbe answers the authority's endpoint validation.
func (h *HTTPHandlers) HandleWebhookProbe(w http.ResponseWriter, r *http.Request) {
	writeOK(w)
}

// HandleWebhook ingests one push. The answer is 200 whatever happens, since
// the authority redelivers anything else.
func (h *HTTPHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to read webhook body", attr.Error(err))
	}

	outcome := h.service.IngestWebhook(ctx, body)
	if outcome.Error != "" {
		h.logger.WarnContext(ctx, "Webhook not processed",
			attr.String("dedupe_key", outcome.DedupeKey),
			attr.String("event_type", outcome.EventType),
			attr.String("error", outcome.Error),
		)
	}
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}
