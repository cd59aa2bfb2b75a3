package duprhandlers

import (
	"errors"
	"net/http"

	matchservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/application"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/go-chi/chi/v5"
)

type eligibleBody struct {
	Eligible *bool `json:"eligible"`
}

// HandleGetMatch reports a match's pipeline category and toggle state.
func (h *HTTPHandlers) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID := chi.URLParam(r, "matchID")

	view, err := h.matches.GetStatus(ctx, matchID)
	if err != nil {
		h.matchError(w, r, matchID, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSetEligible flips a match's eligible flag.
func (h *HTTPHandlers) HandleSetEligible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID := chi.URLParam(r, "matchID")

	var body eligibleBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Eligible == nil {
		writeError(w, http.StatusBadRequest, "eligible is required")
		return
	}

	toggle, err := h.matches.SetEligible(ctx, matchID, *body.Eligible)
	if err != nil {
		h.matchError(w, r, matchID, err)
		return
	}
	writeJSON(w, http.StatusOK, toggle)
}

// HandleFinalizeResult stores an official result for a match.
func (h *HTTPHandlers) HandleFinalizeResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req matchservice.FinalizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.MatchID = chi.URLParam(r, "matchID")

	resp, err := h.matches.FinalizeResult(ctx, req)
	if err != nil {
		h.matchError(w, r, req.MatchID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandlers) matchError(w http.ResponseWriter, r *http.Request, matchID string, err error) {
	var invalid *matchservice.ValidationFailure
	switch {
	case errors.Is(err, matchservice.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, matchservice.ErrEligibilityLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, matchservice.ErrWinnerMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid game scores", invalid.Result.Errors...)
	default:
		h.logger.ErrorContext(r.Context(), "Match request failed", attr.MatchID(matchID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
