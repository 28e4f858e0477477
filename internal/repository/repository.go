package repository

import (
	"context"
	"time"

	"reservation-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction handle, so a
// service can run several repository calls inside one gorm transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateListing creates a new listing
func (r *Repository) CreateListing(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// GetListingByID retrieves a listing by ID
func (r *Repository) GetListingByID(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetListings retrieves listings filtered by status with total count
func (r *Repository) GetListings(
	ctx context.Context,
	status models.ListingStatus,
	limit, offset int,
) ([]*models.Listing, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []*models.Listing
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&listings).Error
	if err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

// UpdateAskPrice updates the ask price of a listing while it is still
// available. Returns the number of rows updated; zero means the listing
// changed state underneath the caller.
func (r *Repository) UpdateAskPrice(
	ctx context.Context,
	listingID uuid.UUID,
	price decimal.Decimal,
) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", listingID, models.ListingStatusAvailable).
		Update("price", price)
	return result.RowsAffected, result.Error
}

// RaiseCurrentBid advances the listing's denormalized current_bid to amount.
// The WHERE clause re-asserts every precondition, so of two concurrent
// bidders only the higher one can win the update.
func (r *Repository) RaiseCurrentBid(
	ctx context.Context,
	listingID uuid.UUID,
	amount decimal.Decimal,
) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND allow_bidding = ? AND (current_bid IS NULL OR current_bid < ?)",
			listingID, models.ListingStatusAvailable, true, amount).
		Update("current_bid", amount)
	return result.RowsAffected, result.Error
}

// DecrementStock takes one unit off a listing at the ask price the buyer saw
// and flips it to SOLD when the last unit goes. The guard re-asserts both the
// stock and the price, so a concurrent last-unit sale or repricing makes the
// update a no-op; callers must treat zero rows as a lost race. last_sale_price
// is written from the same asserted price that goes on the sale record.
func (r *Repository) DecrementStock(
	ctx context.Context,
	listingID uuid.UUID,
	price decimal.Decimal,
	soldAt time.Time,
) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND stock_remaining > 0 AND price = ?",
			listingID, models.ListingStatusAvailable, price).
		Updates(map[string]interface{}{
			"stock_remaining": gorm.Expr("stock_remaining - 1"),
			"status":          gorm.Expr("CASE WHEN stock_remaining - 1 <= 0 THEN ? ELSE status END", models.ListingStatusSold),
			"last_sale_price": price,
			"last_sale_date":  soldAt,
		})
	return result.RowsAffected, result.Error
}

// MarkListingSold transitions a listing to SOLD at the accepted bid price.
// Valid from AVAILABLE (direct acceptance) and PENDING (post-deadline
// acceptance); zero rows means the listing already reached a terminal state.
func (r *Repository) MarkListingSold(
	ctx context.Context,
	listingID uuid.UUID,
	price decimal.Decimal,
	soldAt time.Time,
) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status IN ?", listingID,
			[]models.ListingStatus{models.ListingStatusAvailable, models.ListingStatusPending}).
		Updates(map[string]interface{}{
			"status":          models.ListingStatusSold,
			"price":           price,
			"stock_remaining": 0,
			"last_sale_price": price,
			"last_sale_date":  soldAt,
		})
	return result.RowsAffected, result.Error
}

// GetSweepDueListings retrieves biddable listings whose deadline has passed
// but that still sit in AVAILABLE
func (r *Repository) GetSweepDueListings(ctx context.Context, now time.Time) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.db.WithContext(ctx).
		Where("status = ? AND allow_bidding = ? AND bid_end_time IS NOT NULL AND bid_end_time < ?",
			models.ListingStatusAvailable, true, now).
		Order("bid_end_time ASC").
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// TransitionDueListing applies the deadline transition for one listing: to
// PENDING when a bid is outstanding, to EXPIRED otherwise. The status guard
// makes a second sweep over the same listing a no-op.
func (r *Repository) TransitionDueListing(
	ctx context.Context,
	listingID uuid.UUID,
	target models.ListingStatus,
	now time.Time,
) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND bid_end_time IS NOT NULL AND bid_end_time < ?",
			listingID, models.ListingStatusAvailable, now).
		Update("status", target)
	return result.RowsAffected, result.Error
}

// DeleteListing hard-deletes a listing while it is still available. Sold
// listings are never deleted, only soft-transitioned.
func (r *Repository) DeleteListing(ctx context.Context, listingID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", listingID, models.ListingStatusAvailable).
		Delete(&models.Listing{})
	return result.RowsAffected, result.Error
}
