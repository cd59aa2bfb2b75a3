package matchservice

import (
	"errors"
	"fmt"
	"strings"

	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
)

var (
	// ErrMatchNotFound is returned when the requested match does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrEligibilityLocked is returned when the eligible flag cannot change
	// because the match was submitted or awaits a correction.
	ErrEligibilityLocked = errors.New("eligibility is locked")

	// ErrWinnerMismatch is returned when the declared winner disagrees with the games.
	ErrWinnerMismatch = errors.New("declared winner does not match the game scores")
)

// ValidationFailure carries the validator output for a rejected result.
type ValidationFailure struct {
	Result matchdomain.ValidationResult
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("invalid game scores: %s", strings.Join(e.Result.Errors, "; "))
}
