package userdb

import "errors"

// Sentinel errors for the player profile repository.
var (
	// ErrNotFound indicates the requested profile does not exist.
	ErrNotFound = errors.New("player profile not found")

	// ErrNoRowsAffected indicates an UPDATE matched no rows.
	ErrNoRowsAffected = errors.New("no rows affected")
)
