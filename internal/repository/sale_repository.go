package repository

import (
	"context"
	"time"

	"reservation-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateSaleRecord appends one entry to the sale ledger. The ledger is
// append-only: no update or delete methods exist for sale_records.
func (r *Repository) CreateSaleRecord(ctx context.Context, sale *models.SaleRecord) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// GetSalesForListing retrieves the sale history of a listing, newest first
func (r *Repository) GetSalesForListing(ctx context.Context, listingID uuid.UUID) ([]*models.SaleRecord, error) {
	var sales []*models.SaleRecord
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("executed_at DESC").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// GetLastSale retrieves the most recent sale for a listing, or nil when the
// listing has never sold
func (r *Repository) GetLastSale(ctx context.Context, listingID uuid.UUID) (*models.SaleRecord, error) {
	var sale models.SaleRecord
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("executed_at DESC").
		First(&sale).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

type saleAggregates struct {
	SalesCount int64
	HighPrice  decimal.NullDecimal
	LowPrice   decimal.NullDecimal
}

// GetSaleAggregates computes count, high and low over the full ledger of a
// listing
func (r *Repository) GetSaleAggregates(ctx context.Context, listingID uuid.UUID) (int64, *decimal.Decimal, *decimal.Decimal, error) {
	var agg saleAggregates
	err := r.db.WithContext(ctx).
		Model(&models.SaleRecord{}).
		Select("COUNT(*) AS sales_count, MAX(price) AS high_price, MIN(price) AS low_price").
		Where("listing_id = ?", listingID).
		Scan(&agg).Error
	if err != nil {
		return 0, nil, nil, err
	}

	var high, low *decimal.Decimal
	if agg.HighPrice.Valid {
		high = &agg.HighPrice.Decimal
	}
	if agg.LowPrice.Valid {
		low = &agg.LowPrice.Decimal
	}
	return agg.SalesCount, high, low, nil
}

// GetAveragePriceSince computes the mean sale price over records executed at
// or after since, or nil when the window is empty
func (r *Repository) GetAveragePriceSince(
	ctx context.Context,
	listingID uuid.UUID,
	since time.Time,
) (*decimal.Decimal, error) {
	var avg decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.SaleRecord{}).
		Select("AVG(price)").
		Where("listing_id = ? AND executed_at >= ?", listingID, since).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}

	if !avg.Valid {
		return nil, nil
	}
	return &avg.Decimal, nil
}
