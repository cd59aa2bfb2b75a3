package duprdomain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxIdentifierLength bounds the submission identifier the Authority accepts.
const MaxIdentifierLength = 64

const identifierSeparator = "_"

// SubmissionIdentifier derives the idempotency key of a match submission.
// The same (eventType, eventID, matchID) always yields the same identifier,
// and distinct triples never share one. eventType is one of the known event
// types; ids containing the separator, or too long to join readably, are
// hashed with length-prefixed parts.
func SubmissionIdentifier(eventType, eventID, matchID string) string {
	id := eventType + identifierSeparator + eventID + identifierSeparator + matchID
	readable := !strings.Contains(eventID, identifierSeparator) && !strings.Contains(matchID, identifierSeparator)
	if readable && len(id) <= MaxIdentifierLength {
		return id
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%d:%s|%d:%s|%d:%s", len(eventType), eventType, len(eventID), eventID, len(matchID), matchID))
	return eventType + identifierSeparator + hex.EncodeToString(sum[:])[:40]
}
