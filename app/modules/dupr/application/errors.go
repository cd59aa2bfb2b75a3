package duprservice

import (
	"errors"
)

var (
	// ErrInvalidRequest is returned for malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBatchNotFound is returned when the requested batch does not exist.
	ErrBatchNotFound = errors.New("submission batch not found")

	// ErrBatchNotClaimable is returned when a batch is finished or another
	// worker is processing it.
	ErrBatchNotClaimable = errors.New("submission batch cannot be claimed")
)

// ConversionCode classifies why a match could not be converted.
type ConversionCode string

const (
	CodeMissingResult   ConversionCode = "missing_result"
	CodeMissingSide     ConversionCode = "missing_side"
	CodeGameCount       ConversionCode = "game_count"
	CodeTiedGame        ConversionCode = "tied_game"
	CodeInvalidScores   ConversionCode = "invalid_scores"
	CodeMissingDuprLink ConversionCode = "missing_dupr_link"
	CodeProfileLookup   ConversionCode = "profile_lookup"
)

// ConversionError is a typed, user-actionable conversion failure.
type ConversionError struct {
	Code    ConversionCode
	Message string
	// Missing is the number of players without a rating-authority link.
	Missing int
}

func (e *ConversionError) Error() string {
	return e.Message
}

// AsConversionError unwraps err into a ConversionError.
func AsConversionError(err error) (*ConversionError, bool) {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
