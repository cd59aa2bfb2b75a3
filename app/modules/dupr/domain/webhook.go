package duprdomain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// WebhookEventType is the event name carried by an Authority push.
type WebhookEventType string

const (
	WebhookEventRating       WebhookEventType = "RATING"
	WebhookEventRegistration WebhookEventType = "REGISTRATION"
	WebhookEventValidation   WebhookEventType = "VALIDATION"
	WebhookEventLogin        WebhookEventType = "LOGIN"
)

// Known reports whether t is an event type the pipeline understands.
func (t WebhookEventType) Known() bool {
	switch t {
	case WebhookEventRating, WebhookEventRegistration, WebhookEventValidation, WebhookEventLogin:
		return true
	}
	return false
}

// FlexString accepts a JSON string, number or null and keeps its text form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Float parses the value as a rating. Non-numeric values such as "NR" are nil.
func (f FlexString) Float() *float64 {
	if f == "" {
		return nil
	}
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return nil
	}
	return &v
}

// WebhookRating is the rating block of a push.
type WebhookRating struct {
	Singles FlexString `json:"singles"`
	Doubles FlexString `json:"doubles"`
	MatchID FlexString `json:"matchId"`
}

// WebhookMessage is the message block of a push.
type WebhookMessage struct {
	DuprID FlexString    `json:"duprId"`
	Name   string        `json:"name"`
	Rating WebhookRating `json:"rating"`
}

// WebhookPayload is an Authority push notification.
type WebhookPayload struct {
	Event    WebhookEventType `json:"event"`
	ClientID FlexString       `json:"clientId"`
	Message  WebhookMessage   `json:"message"`
}

// dedupeFields is the normalized projection hashed into the dedupe key. The
// field order is fixed so the encoding is stable.
type dedupeFields struct {
	Event    string `json:"event"`
	ClientID string `json:"clientId"`
	DuprID   string `json:"duprId"`
	MatchID  string `json:"matchId"`
	Singles  string `json:"singles"`
	Doubles  string `json:"doubles"`
}

func (d dedupeFields) empty() bool {
	return d == dedupeFields{}
}

// ParseWebhook decodes a push. A decode failure returns the error alongside a
// zero payload; callers still derive a dedupe key from the raw body.
func ParseWebhook(raw []byte) (WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return WebhookPayload{}, err
	}
	p.Event = WebhookEventType(strings.ToUpper(strings.TrimSpace(string(p.Event))))
	return p, nil
}

// DedupeKey derives the content hash of a push. Normalized fields are hashed
// with an "n:" prefix; when they are all empty the raw body is hashed with an
// "r:" prefix.
func DedupeKey(p WebhookPayload, raw []byte) string {
	fields := dedupeFields{
		Event:    string(p.Event),
		ClientID: string(p.ClientID),
		DuprID:   string(p.Message.DuprID),
		MatchID:  string(p.Message.Rating.MatchID),
		Singles:  normalizeRating(p.Message.Rating.Singles),
		Doubles:  normalizeRating(p.Message.Rating.Doubles),
	}
	if !fields.empty() {
		if encoded, err := json.Marshal(fields); err == nil {
			sum := sha256.Sum256(encoded)
			return "n:" + hex.EncodeToString(sum[:])
		}
	}
	sum := sha256.Sum256(raw)
	return "r:" + hex.EncodeToString(sum[:])
}

// normalizeRating renders numeric ratings canonically so 4.5 and "4.50" match.
func normalizeRating(v FlexString) string {
	if f := v.Float(); f != nil {
		return strconv.FormatFloat(*f, 'f', -1, 64)
	}
	return strings.ToUpper(string(v))
}
