package duprhandlers

import (
	"net/http"

	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type enqueueResponse struct {
	BatchID string `json:"batchId"`
	JobID   int64  `json:"jobId"`
}

// HandleProcessBatch schedules an asynchronous pass over a batch.
func (h *HTTPHandlers) HandleProcessBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID, ok := h.batchID(w, r)
	if !ok {
		return
	}

	jobID, err := h.queue.EnqueueBatch(ctx, batchID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to enqueue batch", attr.BatchID(batchID.String()), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enqueue batch")
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{BatchID: batchID.String(), JobID: jobID})
}

// HandleBatchJobs lists the queue jobs recorded for a batch.
func (h *HTTPHandlers) HandleBatchJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID, ok := h.batchID(w, r)
	if !ok {
		return
	}

	jobs, err := h.queue.GetBatchJobs(ctx, batchID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list batch jobs", attr.BatchID(batchID.String()), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list batch jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *HTTPHandlers) batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue is not running")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return uuid.Nil, false
	}
	return id, true
}
