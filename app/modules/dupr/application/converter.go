package duprservice

import (
	"context"
	"fmt"
	"strings"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/uptrace/bun"
)

const (
	minGames = 1
	maxGames = 5
)

// EventInfo names the event a match is submitted under.
type EventInfo struct {
	Type matchdomain.EventType
	ID   string
	Name string
}

// Conversion is a built submission with its non-blocking warnings.
type Conversion struct {
	Payload  duprdomain.MatchPayload
	Warnings []string
}

// Converter builds submission payloads from matches.
type Converter struct {
	profiles userdb.Repository
	defaults matchdomain.GameRules
	clubID   int64
}

// NewConverter creates a Converter. A clubID of zero submits as PARTNER.
func NewConverter(profiles userdb.Repository, defaults matchdomain.GameRules, clubID int64) *Converter {
	return &Converter{profiles: profiles, defaults: defaults, clubID: clubID}
}

// Convert returns either a payload or a *ConversionError, never both. Other
// errors are infrastructure failures.
func (c *Converter) Convert(ctx context.Context, db bun.IDB, m *matchdomain.Match, event EventInfo) (*Conversion, error) {
	if m.Official == nil {
		return nil, &ConversionError{Code: CodeMissingResult, Message: "match has no official result"}
	}
	if len(m.SideA.PlayerIDs) == 0 || len(m.SideB.PlayerIDs) == 0 {
		return nil, &ConversionError{Code: CodeMissingSide, Message: "match is missing a side"}
	}

	games := m.Official.Games
	if len(games) < minGames || len(games) > maxGames {
		return nil, &ConversionError{
			Code:    CodeGameCount,
			Message: fmt.Sprintf("match must have between %d and %d games, got %d", minGames, maxGames, len(games)),
		}
	}
	if tied := matchdomain.TiedGames(games); len(tied) > 0 {
		g := games[tied[0]-1]
		return nil, &ConversionError{
			Code:    CodeTiedGame,
			Message: fmt.Sprintf("game %d is tied %d-%d", tied[0], g.A, g.B),
		}
	}

	rules := matchdomain.ResolveRules(m.Rules, c.defaults, len(games))
	validation := matchdomain.ValidateGames(games, rules)
	if !validation.Valid {
		return nil, &ConversionError{
			Code:    CodeInvalidScores,
			Message: "invalid game scores: " + strings.Join(validation.Errors, "; "),
		}
	}
	warnings := append([]string{}, validation.Warnings...)
	if winner := matchdomain.MatchWinner(games); m.Official.Winner != "" && m.Official.Winner != winner {
		warnings = append(warnings, fmt.Sprintf("declared winner %s differs from game winner %s", m.Official.Winner, winner))
	}

	perSide := m.PlayersPerSide()
	for _, side := range []struct {
		key  matchdomain.SideKey
		side matchdomain.Side
	}{{matchdomain.SideA, m.SideA}, {matchdomain.SideB, m.SideB}} {
		if n := len(side.side.PlayerIDs); n > perSide {
			return nil, &ConversionError{
				Code:    CodeMissingSide,
				Message: fmt.Sprintf("side %s has %d players, %s allows %d", side.key, n, formatName(perSide), perSide),
			}
		}
	}

	idsA, idsB, err := c.resolveDuprIDs(ctx, db, m)
	if err != nil {
		return nil, err
	}
	for i, ids := range [][]string{idsA, idsB} {
		if len(ids) < perSide {
			key := matchdomain.SideA
			if i == 1 {
				key = matchdomain.SideB
			}
			return nil, &ConversionError{
				Code:    CodeMissingSide,
				Message: fmt.Sprintf("side %s needs %d player(s) for %s", key, perSide, formatName(perSide)),
			}
		}
	}

	format := duprdomain.FormatSingles
	if perSide == 2 {
		format = duprdomain.FormatDoubles
	}

	teamA := duprdomain.Team{Player1: idsA[0], Games: make([]int, len(games))}
	teamB := duprdomain.Team{Player1: idsB[0], Games: make([]int, len(games))}
	if perSide == 2 {
		teamA.Player2 = idsA[1]
		teamB.Player2 = idsB[1]
	}
	for i, g := range games {
		teamA.Games[i] = g.A
		teamB.Games[i] = g.B
	}

	payload := duprdomain.MatchPayload{
		Identifier:  duprdomain.SubmissionIdentifier(string(event.Type), event.ID, m.ID),
		Event:       eventName(event, m),
		Format:      format,
		MatchDate:   matchDate(m),
		MatchSource: duprdomain.MatchSourcePartner,
		TeamA:       teamA,
		TeamB:       teamB,
	}
	if c.clubID > 0 {
		clubID := c.clubID
		payload.MatchSource = duprdomain.MatchSourceClub
		payload.ClubID = &clubID
	}

	return &Conversion{Payload: payload, Warnings: warnings}, nil
}

// resolveDuprIDs prefers ids denormalized onto the match and falls back to
// linked profiles. Players still without a link fail the conversion.
func (c *Converter) resolveDuprIDs(ctx context.Context, db bun.IDB, m *matchdomain.Match) ([]string, []string, error) {
	var lookup []string
	for _, side := range []matchdomain.Side{m.SideA, m.SideB} {
		for i, pid := range side.PlayerIDs {
			if denormalizedID(side, i) == "" {
				lookup = append(lookup, pid)
			}
		}
	}

	linked := map[string]string{}
	if len(lookup) > 0 && c.profiles != nil {
		profiles, err := c.profiles.GetByUserIDs(ctx, db, lookup)
		if err != nil {
			return nil, nil, &ConversionError{Code: CodeProfileLookup, Message: fmt.Sprintf("failed to load player profiles: %v", err)}
		}
		for _, p := range profiles {
			if p.HasDuprLink() {
				linked[p.UserID] = *p.DuprID
			}
		}
	}

	missing := 0
	resolve := func(side matchdomain.Side) []string {
		ids := make([]string, 0, len(side.PlayerIDs))
		for i, pid := range side.PlayerIDs {
			if id := denormalizedID(side, i); id != "" {
				ids = append(ids, id)
				continue
			}
			if id, ok := linked[pid]; ok {
				ids = append(ids, id)
				continue
			}
			missing++
		}
		return ids
	}
	idsA, idsB := resolve(m.SideA), resolve(m.SideB)

	if missing > 0 {
		return nil, nil, &ConversionError{
			Code:    CodeMissingDuprLink,
			Missing: missing,
			Message: fmt.Sprintf("%d player(s) missing DUPR link — %s must link DUPR accounts", missing, requiredPlayers(m.PlayersPerSide())),
		}
	}
	return idsA, idsB, nil
}

func denormalizedID(side matchdomain.Side, i int) string {
	if i < len(side.DuprIDs) {
		return strings.TrimSpace(side.DuprIDs[i])
	}
	return ""
}

func requiredPlayers(perSide int) string {
	if perSide == 1 {
		return "both players"
	}
	return fmt.Sprintf("all %d players", perSide*2)
}

func formatName(perSide int) string {
	if perSide == 2 {
		return "doubles"
	}
	return "singles"
}

func eventName(event EventInfo, m *matchdomain.Match) string {
	switch {
	case event.Name != "":
		return event.Name
	case m.EventName != "":
		return m.EventName
	}
	return fmt.Sprintf("%s %s", event.Type, event.ID)
}

func matchDate(m *matchdomain.Match) string {
	if !m.MatchDate.IsZero() {
		return m.MatchDate.UTC().Format(duprdomain.MatchDateLayout)
	}
	return m.Official.FinalizedAt.UTC().Format(duprdomain.MatchDateLayout)
}
