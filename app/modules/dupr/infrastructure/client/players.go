package duprclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
)

type searchRequest struct {
	DuprIDs []string `json:"duprIds"`
	SortBy  string   `json:"sortBy"`
}

type searchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		DuprID   duprdomain.FlexString `json:"duprId"`
		FullName string                `json:"fullName"`
		Ratings  struct {
			Singles duprdomain.FlexString `json:"singles"`
			Doubles duprdomain.FlexString `json:"doubles"`
		} `json:"ratings"`
	} `json:"results"`
}

// LookupPlayers fetches current ratings for the given players.
func (c *Client) LookupPlayers(ctx context.Context, token string, duprIDs []string) ([]duprdomain.PlayerRating, error) {
	if len(duprIDs) == 0 {
		return nil, nil
	}
	resp, err := c.do(ctx, http.MethodPost, searchPath, token, searchRequest{DuprIDs: duprIDs, SortBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("player lookup request failed: %w", err)
	}
	if !isSuccess(resp.status) {
		return nil, fmt.Errorf("player lookup failed: %s", errorMessage(resp.status, resp.body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, fmt.Errorf("decode player lookup: %w", err)
	}
	out := make([]duprdomain.PlayerRating, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.DuprID == "" {
			continue
		}
		out = append(out, duprdomain.PlayerRating{
			DuprID:  string(r.DuprID),
			Name:    r.FullName,
			Singles: r.Ratings.Singles.Float(),
			Doubles: r.Ratings.Doubles.Float(),
		})
	}
	return out, nil
}

// SubscribeRatingChanges registers players for rating-change webhooks.
func (c *Client) SubscribeRatingChanges(ctx context.Context, token string, duprIDs []string) error {
	if len(duprIDs) == 0 {
		return nil
	}
	resp, err := c.do(ctx, http.MethodPost, subscribePath, token, duprIDs)
	if err != nil {
		return fmt.Errorf("rating subscription request failed: %w", err)
	}
	if !isSuccess(resp.status) {
		return fmt.Errorf("rating subscription failed: %s", errorMessage(resp.status, resp.body))
	}
	return nil
}
