package models

import (
	"time"

	"github.com/google/uuid"
)

// Action types gated by the rate limiter
const (
	ActionPlaceBid = "place_bid"
)

// RateLimitRecord is one counted attempt at a gated action. Records are only
// created and expired, never mutated; queries ignore rows past expires_at.
type RateLimitRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index:idx_rate_limit_window" json:"user_id"`
	ActionType string    `gorm:"size:100;not null;index:idx_rate_limit_window" json:"action_type"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt  time.Time `gorm:"not null;index:idx_rate_limit_window" json:"expires_at"`
}

func (RateLimitRecord) TableName() string {
	return "rate_limit_records"
}
