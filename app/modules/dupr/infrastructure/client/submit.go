package duprclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
)

// DuplicateWarning is attached to submissions the Authority already holds.
const DuplicateWarning = "already exists at DUPR"

var duplicateMarkers = []string{"already exists", "duplicate"}

// SubmitMatch posts one match and classifies the response. It never returns
// an error; transport failures become a failed outcome.
func (c *Client) SubmitMatch(ctx context.Context, token string, payload duprdomain.MatchPayload) duprdomain.SubmitOutcome {
	resp, err := c.do(ctx, http.MethodPost, submitPath, token, payload)
	if err != nil {
		return duprdomain.SubmitOutcome{Error: fmt.Sprintf("request failed: %v", err)}
	}

	outcome := duprdomain.SubmitOutcome{StatusCode: resp.status}
	if json.Valid(resp.body) {
		outcome.RawResponse = json.RawMessage(resp.body)
	}

	if isSuccess(resp.status) {
		outcome.Success = true
		outcome.ExternalID = externalID(resp.body)
		return outcome
	}

	msg := errorMessage(resp.status, resp.body)
	if resp.status == http.StatusConflict || (resp.status >= 400 && resp.status < 500 && isDuplicate(msg)) {
		outcome.Success = true
		outcome.Duplicate = true
		outcome.ExternalID = externalID(resp.body)
		outcome.Warnings = []string{DuplicateWarning}
		return outcome
	}

	outcome.Error = msg
	return outcome
}

func isDuplicate(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range duplicateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// externalID finds the Authority's match id in either a flat or a wrapped response.
func externalID(body []byte) string {
	var parsed struct {
		MatchID duprdomain.FlexString `json:"matchId"`
		ID      duprdomain.FlexString `json:"id"`
		Result  struct {
			MatchID duprdomain.FlexString `json:"matchId"`
			ID      duprdomain.FlexString `json:"id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, candidate := range []duprdomain.FlexString{parsed.MatchID, parsed.Result.MatchID, parsed.ID, parsed.Result.ID} {
		if candidate != "" {
			return string(candidate)
		}
	}
	return ""
}
