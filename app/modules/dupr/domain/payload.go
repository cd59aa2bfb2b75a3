package duprdomain

import (
	"encoding/json"
	"fmt"
)

// Format is the Authority's match format.
type Format string

const (
	FormatSingles Format = "SINGLES"
	FormatDoubles Format = "DOUBLES"
)

// MatchSource selects which payload shape the Authority validates against.
type MatchSource string

const (
	MatchSourceClub    MatchSource = "CLUB"
	MatchSourcePartner MatchSource = "PARTNER"
)

// MatchDateLayout is the date format the Authority expects.
const MatchDateLayout = "2006-01-02"

// Team is one side of a submission. Both teams always carry the same set of
// game fields.
type Team struct {
	Player1 string
	Player2 string
	Games   []int
}

// MarshalJSON flattens games into game1..gameN and drops an empty player2.
func (t Team) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Games)+2)
	out["player1"] = t.Player1
	if t.Player2 != "" {
		out["player2"] = t.Player2
	}
	for i, score := range t.Games {
		out[fmt.Sprintf("game%d", i+1)] = score
	}
	return json.Marshal(out)
}

// MatchPayload is the body of a match submission. ClubID is absent for
// PARTNER submissions, never null.
type MatchPayload struct {
	Identifier  string      `json:"identifier"`
	Event       string      `json:"event"`
	Format      Format      `json:"format"`
	MatchDate   string      `json:"matchDate"`
	MatchSource MatchSource `json:"matchSource"`
	ClubID      *int64      `json:"clubId,omitempty"`
	TeamA       Team        `json:"teamA"`
	TeamB       Team        `json:"teamB"`
}

// GameCount is the number of games in the payload.
func (p MatchPayload) GameCount() int {
	return len(p.TeamA.Games)
}
