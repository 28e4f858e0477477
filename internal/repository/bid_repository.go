package repository

import (
	"context"
	"time"

	"reservation-market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateBid creates a new bid
func (r *Repository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

// GetBidByID retrieves a bid by ID
func (r *Repository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).Where("id = ?", bidID).First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// GetHighestOpenBid retrieves the highest-amount open bid for a listing,
// or nil when the listing has no open bids
func (r *Repository) GetHighestOpenBid(ctx context.Context, listingID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND status = ?", listingID, models.BidStatusOpen).
		Order("amount DESC").
		First(&bid).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// GetBidsForListing retrieves all bids for a listing, highest first
func (r *Repository) GetBidsForListing(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	var bids []*models.Bid
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("amount DESC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// GetBidsByBidder retrieves all bids placed by a user
func (r *Repository) GetBidsByBidder(
	ctx context.Context,
	bidderID uint,
	limit, offset int,
) ([]*models.Bid, error) {
	var bids []*models.Bid
	err := r.db.WithContext(ctx).
		Where("bidder_id = ?", bidderID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// AcceptOpenBid marks an open bid as accepted. Zero rows means the bid was
// no longer open; acceptance is terminal and happens at most once per listing.
func (r *Repository) AcceptOpenBid(ctx context.Context, bidID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ? AND status = ?", bidID, models.BidStatusOpen).
		Update("status", models.BidStatusAccepted)
	return result.RowsAffected, result.Error
}

// RejectSiblingBids rejects every other open bid on the listing once one bid
// has been accepted
func (r *Repository) RejectSiblingBids(ctx context.Context, listingID, acceptedBidID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("listing_id = ? AND status = ? AND id != ?", listingID, models.BidStatusOpen, acceptedBidID).
		Update("status", models.BidStatusRejected)
	return result.RowsAffected, result.Error
}

// ExpireBidsPast expires open bids whose own expiry timestamp has passed and
// returns the ids of the listings that lost one, so callers can recompute the
// denormalized current_bid.
func (r *Repository) ExpireBidsPast(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var listingIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Distinct().
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.BidStatusOpen, now).
		Pluck("listing_id", &listingIDs).Error
	if err != nil {
		return nil, err
	}
	if len(listingIDs) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.BidStatusOpen, now).
		Update("status", models.BidStatusExpired).Error
	if err != nil {
		return nil, err
	}
	return listingIDs, nil
}

// RecomputeCurrentBid re-derives a listing's current_bid from its highest
// remaining open bid, NULL when none remain. Only AVAILABLE listings are
// touched; pending and settled listings keep the amount they settled against.
func (r *Repository) RecomputeCurrentBid(ctx context.Context, listingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", listingID, models.ListingStatusAvailable).
		Update("current_bid", gorm.Expr(
			"(SELECT MAX(amount) FROM bids WHERE listing_id = ? AND status = ?)",
			listingID, models.BidStatusOpen,
		)).Error
}
