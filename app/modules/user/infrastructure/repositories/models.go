package userdb

import (
	"time"

	"github.com/uptrace/bun"
)

// PlayerProfile is a club member's profile with their rating-authority link.
type PlayerProfile struct {
	bun.BaseModel `bun:"table:player_profiles,alias:pp"`

	UserID          string     `bun:"user_id,pk" json:"user_id"`
	DisplayName     string     `bun:"display_name,nullzero" json:"display_name,omitempty"`
	DuprID          *string    `bun:"dupr_id,unique" json:"dupr_id,omitempty"`
	SinglesRating   *float64   `bun:"singles_rating" json:"singles_rating,omitempty"`
	DoublesRating   *float64   `bun:"doubles_rating" json:"doubles_rating,omitempty"`
	RatingUpdatedAt *time.Time `bun:"rating_updated_at" json:"rating_updated_at,omitempty"`
	DuprSubscribed  bool       `bun:"dupr_subscribed,notnull,default:false" json:"dupr_subscribed"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// HasDuprLink reports whether the profile is linked to a rating-authority account.
func (p *PlayerProfile) HasDuprLink() bool {
	return p != nil && p.DuprID != nil && *p.DuprID != ""
}
