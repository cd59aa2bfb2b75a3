package duprhandlers

import (
	"errors"
	"net/http"

	authhandlers "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/infrastructure/handlers"
	duprservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/application"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
)

// HandleSubmit queues and processes the eligible matches of an event.
func (h *HTTPHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req duprservice.SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.SubmitMatches(ctx, req)
	if err != nil {
		if errors.Is(err, duprservice.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "Submission request failed", attr.Event(string(req.EventType), req.EventID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleRetry resubmits an event's failed and pending matches.
func (h *HTTPHandlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req duprservice.RetryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.RetryFailed(ctx, req)
	if err != nil {
		if errors.Is(err, duprservice.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "Retry request failed", attr.Event(string(req.EventType), req.EventID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "retry failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDiagnose traces one match. The report is returned for every
// outcome; only auth and permission failures change the status code.
func (h *HTTPHandlers) HandleDiagnose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req duprservice.DiagnoseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if claims, ok := authhandlers.ClaimsFromContext(ctx); ok {
		req.Caller = &duprservice.Caller{UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
	} else {
		req.AuthError = authhandlers.AuthErrorFromContext(ctx)
		if req.AuthError == nil {
			req.AuthError = authhandlers.ErrMissingToken
		}
	}

	report := h.service.Diagnose(ctx, req)

	status := http.StatusOK
	switch report.FailedStage {
	case duprservice.StageAuth:
		status = http.StatusUnauthorized
	case duprservice.StagePermission:
		status = http.StatusForbidden
	}
	writeJSON(w, status, report)
}
