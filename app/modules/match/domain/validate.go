package matchdomain

import "fmt"

// GameRules configures what a legal game score looks like.
type GameRules struct {
	PointsToWin int `json:"pointsToWin" yaml:"points_to_win"`
	WinBy       int `json:"winBy" yaml:"win_by"`
	BestOf      int `json:"bestOf" yaml:"best_of"`
	// Cap, when positive, allows a game to be won by a single point once the
	// winning score reaches it.
	Cap int `json:"cap,omitempty" yaml:"cap"`
	// MinimumScore is a plausibility floor; games below it only warn.
	MinimumScore int `json:"minimumScore,omitempty" yaml:"minimum_score"`
}

// DefaultGameRules are standard rally-to-11, win-by-2, best-of-3 rules.
func DefaultGameRules() GameRules {
	return GameRules{PointsToWin: 11, WinBy: 2, BestOf: 3, MinimumScore: 6}
}

// withDefaults fills zero fields so a partially configured rule set stays usable.
func (r GameRules) withDefaults() GameRules {
	d := DefaultGameRules()
	if r.PointsToWin <= 0 {
		r.PointsToWin = d.PointsToWin
	}
	if r.WinBy <= 0 {
		r.WinBy = 1
	}
	if r.BestOf <= 0 {
		r.BestOf = d.BestOf
	}
	return r
}

// ValidationResult is the outcome of ValidateGames. Errors are hard failures,
// Warnings are informational.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// TiedGames returns the 1-based numbers of games with equal scores.
func TiedGames(games []GameScore) []int {
	var tied []int
	for i, g := range games {
		if g.A == g.B {
			tied = append(tied, i+1)
		}
	}
	return tied
}

// ValidateGames checks every game against rules. It is pure.
func ValidateGames(games []GameScore, rules GameRules) ValidationResult {
	rules = rules.withDefaults()
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if len(games) == 0 {
		res.Errors = append(res.Errors, "no games recorded")
		return res
	}

	wins := map[SideKey]int{}
	for i, g := range games {
		n := i + 1
		if g.A < 0 || g.B < 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("game %d: scores cannot be negative", n))
			continue
		}
		if g.A == g.B {
			res.Errors = append(res.Errors, fmt.Sprintf("game %d: tied score %d-%d", n, g.A, g.B))
			continue
		}

		winner, loser := g.A, g.B
		if g.B > g.A {
			winner, loser = g.B, g.A
		}
		wins[g.Winner()]++
		margin := winner - loser
		capped := rules.Cap > 0 && winner >= rules.Cap

		if winner < rules.PointsToWin {
			res.Errors = append(res.Errors, fmt.Sprintf("game %d: winning score %d is below %d points to win", n, winner, rules.PointsToWin))
		}

		switch {
		case margin < rules.WinBy && !capped:
			res.Errors = append(res.Errors, fmt.Sprintf("game %d: %d-%d does not meet win-by-%d", n, winner, loser, rules.WinBy))
		case margin < rules.WinBy && capped:
			res.Warnings = append(res.Warnings, fmt.Sprintf("game %d: %d-%d decided at score cap %d", n, winner, loser, rules.Cap))
		}

		// Past points-to-win the game ends as soon as the margin is reached.
		if winner > rules.PointsToWin && margin > rules.WinBy {
			res.Errors = append(res.Errors, fmt.Sprintf("game %d: losing score %d is inconsistent with a winning score of %d (game ends at %d)", n, loser, winner, rules.PointsToWin))
		}

		if rules.MinimumScore > 0 && winner < rules.MinimumScore {
			res.Warnings = append(res.Warnings, fmt.Sprintf("game %d: no side reached the minimum of %d points", n, rules.MinimumScore))
		}
	}

	if len(games) > rules.BestOf {
		res.Errors = append(res.Errors, fmt.Sprintf("%d games recorded for a best-of-%d match", len(games), rules.BestOf))
	}
	needed := rules.BestOf/2 + 1
	if lead := max(wins[SideA], wins[SideB]); lead < needed {
		res.Errors = append(res.Errors, fmt.Sprintf("leading side won %d game(s), best-of-%d needs %d", lead, rules.BestOf, needed))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// MatchWinner returns the side that won the most games, or "" when level.
func MatchWinner(games []GameScore) SideKey {
	wins := map[SideKey]int{}
	for _, g := range games {
		wins[g.Winner()]++
	}
	switch {
	case wins[SideA] > wins[SideB]:
		return SideA
	case wins[SideB] > wins[SideA]:
		return SideB
	}
	return ""
}

// ResolveRules picks the rules a match is validated against: its own rules
// when set, otherwise defaults fitted to the recorded game count. A single
// recorded game is a best-of-1 match.
func ResolveRules(own *GameRules, defaults GameRules, gameCount int) GameRules {
	if own != nil {
		return *own
	}
	if gameCount == 1 {
		defaults.BestOf = 1
		return defaults
	}
	if inferred := InferBestOf(gameCount); inferred > defaults.BestOf {
		defaults.BestOf = inferred
	}
	return defaults
}

// InferBestOf returns the smallest odd best-of count that fits gameCount.
func InferBestOf(gameCount int) int {
	if gameCount <= 1 {
		return 1
	}
	if gameCount%2 == 0 {
		return gameCount + 1
	}
	return gameCount
}
