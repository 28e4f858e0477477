package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservation-market/internal/marketerrors"
	"reservation-market/internal/models"
	"reservation-market/internal/realtime"
	"reservation-market/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ListingService owns the listing status state machine and the transitions
// driven by purchase. SOLD and EXPIRED are terminal.
type ListingService struct {
	db   *gorm.DB
	repo *repository.Repository
	feed *realtime.Hub
}

func NewListingService(db *gorm.DB, repo *repository.Repository, feed *realtime.Hub) *ListingService {
	return &ListingService{
		db:   db,
		repo: repo,
		feed: feed,
	}
}

// CreateListing creates a new listing for sale
func (s *ListingService) CreateListing(
	ctx context.Context,
	sellerID uint,
	req *models.CreateListingRequest,
) (*models.Listing, error) {
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", marketerrors.ErrValidation)
	}

	stock := req.StockRemaining
	if stock <= 0 {
		stock = 1
	}

	if req.AllowBidding && stock > 1 {
		// Bidding assumes a single unit; multi-unit listings sell buy-now only.
		return nil, fmt.Errorf("%w: bidding is only supported on single-unit listings", marketerrors.ErrValidation)
	}
	if req.MinimumBid != nil && !req.MinimumBid.IsPositive() {
		return nil, fmt.Errorf("%w: minimum bid must be positive", marketerrors.ErrValidation)
	}

	listing := &models.Listing{
		ID:              uuid.New(),
		SellerID:        sellerID,
		RestaurantName:  req.RestaurantName,
		Location:        req.Location,
		Cuisine:         req.Cuisine,
		PartySize:       req.PartySize,
		ReservationTime: req.ReservationTime,
		Price:           req.Price,
		OriginalPrice:   req.Price,
		Status:          models.ListingStatusAvailable,
		StockRemaining:  stock,
		AllowBidding:    req.AllowBidding,
		MinimumBid:      req.MinimumBid,
		BidEndTime:      req.BidEndTime,
		CreatedAt:       time.Now(),
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	log.Printf("Listing %s created by seller %d: %s", listing.ID, sellerID, listing.RestaurantName)

	return listing, nil
}

// GetListing retrieves a listing by ID
func (s *ListingService) GetListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing %s", marketerrors.ErrNotFound, listingID)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// GetListings retrieves listings filtered by status with pagination
func (s *ListingService) GetListings(
	ctx context.Context,
	status models.ListingStatus,
	limit, offset int,
) ([]*models.Listing, int64, error) {
	return s.repo.GetListings(ctx, status, limit, offset)
}

// BuyNow purchases one unit at the ask price. Stock is decremented under a
// guard so a concurrent second purchase of the last unit loses; the sale
// record commits in the same transaction as the stock update.
func (s *ListingService) BuyNow(
	ctx context.Context,
	listingID uuid.UUID,
	buyerID uint,
	buyerName string,
) (*models.SaleRecord, error) {
	var sale *models.SaleRecord
	var soldOut bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		listing, err := repo.GetListingByID(ctx, listingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: listing %s", marketerrors.ErrNotFound, listingID)
			}
			return fmt.Errorf("failed to get listing: %w", err)
		}

		if listing.Status != models.ListingStatusAvailable || listing.StockRemaining <= 0 {
			return fmt.Errorf("%w: listing is no longer available", marketerrors.ErrValidation)
		}

		now := time.Now()

		rows, err := repo.DecrementStock(ctx, listingID, listing.Price, now)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: listing changed concurrently", marketerrors.ErrConflict)
		}

		soldOut = listing.StockRemaining == 1

		sale = &models.SaleRecord{
			ID:         uuid.New(),
			ListingID:  listingID,
			BuyerID:    buyerID,
			BuyerName:  buyerName,
			Price:      listing.Price,
			ExecutedAt: now,
		}
		if err := repo.CreateSaleRecord(ctx, sale); err != nil {
			return fmt.Errorf("failed to append sale record: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Listing %s bought by user %d at %s", listingID, buyerID, sale.Price)

	eventType := realtime.EventListingUpdated
	if soldOut {
		eventType = realtime.EventListingSold
	}
	s.feed.Publish(realtime.Event{Type: eventType, ListingID: listingID, Payload: sale})

	return sale, nil
}

// UpdateAsk updates the seller's ask price on an available listing
func (s *ListingService) UpdateAsk(
	ctx context.Context,
	listingID uuid.UUID,
	sellerID uint,
	req *models.UpdateAskRequest,
) (*models.Listing, error) {
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", marketerrors.ErrValidation)
	}

	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, fmt.Errorf("%w: only the seller may update the ask", marketerrors.ErrNotAuthorized)
	}

	rows, err := s.repo.UpdateAskPrice(ctx, listingID, req.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to update ask price: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: listing is no longer available", marketerrors.ErrConflict)
	}

	listing.Price = req.Price

	s.feed.Publish(realtime.Event{Type: realtime.EventListingUpdated, ListingID: listingID, Payload: listing})

	return listing, nil
}

// DeleteListing hard-deletes an available listing. Only the owner may delete,
// and only before any sale or state transition.
func (s *ListingService) DeleteListing(ctx context.Context, listingID uuid.UUID, sellerID uint) error {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.SellerID != sellerID {
		return fmt.Errorf("%w: only the seller may delete the listing", marketerrors.ErrNotAuthorized)
	}

	rows, err := s.repo.DeleteListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: listing is no longer available", marketerrors.ErrConflict)
	}

	log.Printf("Listing %s deleted by seller %d", listingID, sellerID)

	return nil
}
