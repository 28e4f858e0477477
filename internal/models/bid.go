package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BidStatus string

const (
	BidStatusOpen     BidStatus = "OPEN"
	BidStatusAccepted BidStatus = "ACCEPTED"
	BidStatusRejected BidStatus = "REJECTED"
	BidStatusExpired  BidStatus = "EXPIRED"
)

// Bid represents a buyer's offer on a listing, subject to seller acceptance.
// BidderName is denormalized from the session at creation so an accepted bid
// can be written to the sale ledger without a user lookup.
type Bid struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"listing_id"`
	BidderID   uint            `gorm:"not null;index" json:"bidder_id"`
	BidderName string          `gorm:"size:255" json:"bidder_name"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Status     BidStatus       `gorm:"size:50;not null;default:OPEN;index" json:"status"`
	CreatedAt  time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt  *time.Time      `json:"expires_at"`
}

func (Bid) TableName() string {
	return "bids"
}

// PlaceBidRequest represents a request to place a bid on a listing
type PlaceBidRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	ExpiresInDays int             `json:"expires_in_days"`
}
