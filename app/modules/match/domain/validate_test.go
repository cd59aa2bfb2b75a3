package matchdomain

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
)

func TestValidateGames(t *testing.T) {
	standard := GameRules{PointsToWin: 11, WinBy: 2, BestOf: 3}

	tests := []struct {
		name         string
		games        []GameScore
		rules        GameRules
		wantValid    bool
		wantErrors   int
		wantWarnings int
	}{
		{
			name:      "straight games win",
			games:     []GameScore{{11, 5}, {11, 7}},
			rules:     standard,
			wantValid: true,
		},
		{
			name:      "deuce game won by two",
			games:     []GameScore{{12, 10}, {11, 4}},
			rules:     standard,
			wantValid: true,
		},
		{
			name:       "deuce game won by one",
			games:      []GameScore{{12, 11}, {11, 4}},
			rules:      standard,
			wantErrors: 1,
		},
		{
			name:         "cap allows one point margin",
			games:        []GameScore{{16, 15}, {11, 4}},
			rules:        GameRules{PointsToWin: 11, WinBy: 2, BestOf: 3, Cap: 15},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:       "winner below points to win",
			games:      []GameScore{{9, 7}, {11, 4}},
			rules:      standard,
			wantErrors: 1,
		},
		{
			name:       "loser score inconsistent with extended game",
			games:      []GameScore{{15, 5}, {11, 4}},
			rules:      standard,
			wantErrors: 1,
		},
		{
			name:       "too many games",
			games:      []GameScore{{11, 5}, {5, 11}, {11, 5}, {11, 3}},
			rules:      standard,
			wantErrors: 1,
		},
		{
			name:       "no majority",
			games:      []GameScore{{11, 5}, {5, 11}},
			rules:      standard,
			wantErrors: 1,
		},
		{
			name:         "low score heuristic only warns",
			games:        []GameScore{{5, 3}},
			rules:        GameRules{PointsToWin: 5, WinBy: 2, BestOf: 1, MinimumScore: 6},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:       "empty",
			games:      nil,
			rules:      standard,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateGames(tt.games, tt.rules)
			assert.Equal(t, tt.wantValid, res.Valid, "errors: %v", res.Errors)
			assert.Len(t, res.Errors, tt.wantErrors, "errors: %v", res.Errors)
			assert.Len(t, res.Warnings, tt.wantWarnings, "warnings: %v", res.Warnings)
		})
	}
}

func TestValidateGames_WinByEnforcement(t *testing.T) {
	rules := GameRules{PointsToWin: 11, WinBy: 2, BestOf: 1}

	assert.False(t, ValidateGames([]GameScore{{12, 11}}, rules).Valid)
	assert.True(t, ValidateGames([]GameScore{{12, 10}}, rules).Valid)

	rules.Cap = 15
	res := ValidateGames([]GameScore{{16, 15}}, rules)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidateGames_TieAlwaysInvalid(t *testing.T) {
	f := gofakeit.New(42)
	for i := 0; i < 500; i++ {
		score := f.IntRange(0, 40)
		rules := GameRules{
			PointsToWin:  f.IntRange(1, 25),
			WinBy:        f.IntRange(1, 3),
			BestOf:       f.IntRange(1, 5),
			Cap:          f.IntRange(0, 30),
			MinimumScore: f.IntRange(0, 8),
		}
		res := ValidateGames([]GameScore{{A: score, B: score}}, rules)
		assert.False(t, res.Valid, "tie %d-%d accepted under %+v", score, score, rules)
	}
}

func TestValidateGames_MessagesNameTheGame(t *testing.T) {
	res := ValidateGames([]GameScore{{11, 3}, {7, 7}}, GameRules{PointsToWin: 11, WinBy: 2, BestOf: 3})
	assert.Contains(t, res.Errors, "game 2: tied score 7-7")
}

func TestTiedGames(t *testing.T) {
	assert.Equal(t, []int{2, 3}, TiedGames([]GameScore{{11, 3}, {4, 4}, {0, 0}}))
	assert.Empty(t, TiedGames([]GameScore{{11, 3}}))
}

func TestMatchWinner(t *testing.T) {
	assert.Equal(t, SideA, MatchWinner([]GameScore{{11, 3}, {4, 11}, {11, 9}}))
	assert.Equal(t, SideB, MatchWinner([]GameScore{{3, 11}}))
	assert.Equal(t, SideKey(""), MatchWinner([]GameScore{{11, 3}, {3, 11}}))
}

func TestInferBestOf(t *testing.T) {
	for games, want := range map[int]int{0: 1, 1: 1, 2: 3, 3: 3, 4: 5, 5: 5} {
		assert.Equal(t, want, InferBestOf(games), "games=%d", games)
	}
}

func TestResolveRules(t *testing.T) {
	defaults := DefaultGameRules()

	own := &GameRules{PointsToWin: 15, WinBy: 1, BestOf: 1}
	assert.Equal(t, *own, ResolveRules(own, defaults, 4))

	assert.Equal(t, 1, ResolveRules(nil, defaults, 1).BestOf)
	assert.Equal(t, 3, ResolveRules(nil, defaults, 2).BestOf)
	assert.Equal(t, 5, ResolveRules(nil, defaults, 4).BestOf)

	single := []GameScore{{A: 11, B: 5}}
	assert.True(t, ValidateGames(single, ResolveRules(nil, defaults, len(single))).Valid)
	assert.False(t, ValidateGames(single, defaults).Valid)
	assert.Equal(t, 5, ResolveRules(nil, defaults, 5).BestOf)
}
