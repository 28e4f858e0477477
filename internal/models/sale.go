package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleRecord is an append-only entry in the transaction ledger. The buyer
// name is denormalized at write time so the ledger stays self-contained.
type SaleRecord struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"listing_id"`
	BuyerID    uint            `gorm:"not null;index" json:"buyer_id"`
	BuyerName  string          `gorm:"size:255;not null" json:"buyer_name"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	ExecutedAt time.Time       `gorm:"not null;index" json:"executed_at"`
}

func (SaleRecord) TableName() string {
	return "sale_records"
}

// MarketStats summarizes the sale ledger for one listing
type MarketStats struct {
	LastSalePrice *decimal.Decimal `json:"last_sale_price"`
	ThirtyDayAvg  *decimal.Decimal `json:"thirty_day_avg"`
	HighPrice     *decimal.Decimal `json:"high_price"`
	LowPrice      *decimal.Decimal `json:"low_price"`
	SalesCount    int64            `json:"sales_count"`
}
