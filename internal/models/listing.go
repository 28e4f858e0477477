package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "AVAILABLE"
	ListingStatusPending   ListingStatus = "PENDING"
	ListingStatusSold      ListingStatus = "SOLD"
	ListingStatusExpired   ListingStatus = "EXPIRED"
)

// Listing represents a sellable reservation slot offered by a seller
type Listing struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID        uint             `gorm:"not null;index" json:"seller_id"`
	RestaurantName  string           `gorm:"size:255;not null" json:"restaurant_name"`
	Location        string           `gorm:"size:255" json:"location"`
	Cuisine         string           `gorm:"size:100" json:"cuisine"`
	PartySize       int              `gorm:"default:2" json:"party_size"`
	ReservationTime time.Time        `gorm:"not null" json:"reservation_time"`
	Price           decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"price"`
	OriginalPrice   decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"original_price"`
	Status          ListingStatus    `gorm:"size:50;not null;default:AVAILABLE;index" json:"status"`
	StockRemaining  int              `gorm:"not null;default:1" json:"stock_remaining"`
	AllowBidding    bool             `gorm:"not null;default:false" json:"allow_bidding"`
	MinimumBid      *decimal.Decimal `gorm:"type:decimal(20,8)" json:"minimum_bid"`
	CurrentBid      *decimal.Decimal `gorm:"type:decimal(20,8)" json:"current_bid"`
	BidEndTime      *time.Time       `json:"bid_end_time"`
	LastSalePrice   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"last_sale_price"`
	LastSaleDate    *time.Time       `json:"last_sale_date"`
	CreatedAt       time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// CreateListingRequest represents a request to list a reservation for sale
type CreateListingRequest struct {
	RestaurantName  string           `json:"restaurant_name" binding:"required"`
	Location        string           `json:"location"`
	Cuisine         string           `json:"cuisine"`
	PartySize       int              `json:"party_size"`
	ReservationTime time.Time        `json:"reservation_time" binding:"required"`
	Price           decimal.Decimal  `json:"price" binding:"required"`
	StockRemaining  int              `json:"stock_remaining"`
	AllowBidding    bool             `json:"allow_bidding"`
	MinimumBid      *decimal.Decimal `json:"minimum_bid"`
	BidEndTime      *time.Time       `json:"bid_end_time"`
}

// UpdateAskRequest represents a seller updating the ask price of a listing
type UpdateAskRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}
