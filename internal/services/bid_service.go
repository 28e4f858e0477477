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

// BidService validates and persists bid attempts against listings, gated by
// the rate limiter. All check-then-act sequences run inside one transaction
// and commit through guarded updates that re-assert their preconditions.
type BidService struct {
	db            *gorm.DB
	repo          *repository.Repository
	limiter       *RateLimitService
	feed          *realtime.Hub
	bidExpiryDays int
}

func NewBidService(
	db *gorm.DB,
	repo *repository.Repository,
	limiter *RateLimitService,
	feed *realtime.Hub,
	bidExpiryDays int,
) *BidService {
	if bidExpiryDays <= 0 {
		bidExpiryDays = 3
	}
	return &BidService{
		db:            db,
		repo:          repo,
		limiter:       limiter,
		feed:          feed,
		bidExpiryDays: bidExpiryDays,
	}
}

// PlaceBid validates and records a bid on a listing. A recorded amount must
// strictly exceed both the configured minimum and every currently open bid;
// ties are rejected. A blocked attempt leaves the store untouched, including
// the rate limit window.
func (s *BidService) PlaceBid(
	ctx context.Context,
	listingID uuid.UUID,
	bidderID uint,
	bidderName string,
	req *models.PlaceBidRequest,
) (*models.Bid, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: bid amount must be positive", marketerrors.ErrValidation)
	}

	expiresInDays := req.ExpiresInDays
	if expiresInDays <= 0 {
		expiresInDays = s.bidExpiryDays
	}

	var bid *models.Bid

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		listing, err := repo.GetListingByID(ctx, listingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: listing %s", marketerrors.ErrNotFound, listingID)
			}
			return fmt.Errorf("failed to get listing: %w", err)
		}

		if !listing.AllowBidding {
			return fmt.Errorf("%w: listing does not accept bids", marketerrors.ErrValidation)
		}
		if listing.Status != models.ListingStatusAvailable {
			return fmt.Errorf("%w: listing is %s", marketerrors.ErrValidation, listing.Status)
		}
		if listing.MinimumBid != nil && req.Amount.LessThan(*listing.MinimumBid) {
			return fmt.Errorf("%w: bid below minimum of %s", marketerrors.ErrValidation, listing.MinimumBid)
		}

		highest, err := repo.GetHighestOpenBid(ctx, listingID)
		if err != nil {
			return fmt.Errorf("failed to get highest open bid: %w", err)
		}
		if highest != nil && req.Amount.LessThanOrEqual(highest.Amount) {
			return fmt.Errorf("%w: bid must exceed current highest of %s",
				marketerrors.ErrValidation, highest.Amount)
		}

		// Rate limit gate, inside the same transaction as the insert it
		// guards: a rejected attempt must not mutate anything.
		limiter := s.limiter.WithRepo(repo)
		allowed, retryAfter, err := limiter.CheckAllowed(ctx, bidderID, models.ActionPlaceBid)
		if err != nil {
			return err
		}
		if !allowed {
			return &marketerrors.RateLimitedError{RemainingSeconds: retryAfter}
		}
		if err := limiter.RecordAttempt(ctx, bidderID, models.ActionPlaceBid); err != nil {
			return err
		}

		// CAS serialization point: of two concurrent bidders that both read
		// the same highest bid, only one can win this update.
		rows, err := repo.RaiseCurrentBid(ctx, listingID, req.Amount)
		if err != nil {
			return fmt.Errorf("failed to update current bid: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: a higher bid was recorded first", marketerrors.ErrConflict)
		}

		expiresAt := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour)
		bid = &models.Bid{
			ID:         uuid.New(),
			ListingID:  listingID,
			BidderID:   bidderID,
			BidderName: bidderName,
			Amount:     req.Amount,
			Status:     models.BidStatusOpen,
			CreatedAt:  time.Now(),
			ExpiresAt:  &expiresAt,
		}
		if err := repo.CreateBid(ctx, bid); err != nil {
			return fmt.Errorf("failed to create bid: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Bid %s placed on listing %s: %s by user %d", bid.ID, listingID, bid.Amount, bidderID)

	s.feed.Publish(realtime.Event{Type: realtime.EventBidPlaced, ListingID: listingID, Payload: bid})

	return bid, nil
}

// AcceptBid lets the listing's seller accept an open bid. The listing goes to
// SOLD at the accepted amount, every sibling open bid is rejected, and a sale
// record is appended, all in one transaction.
func (s *BidService) AcceptBid(
	ctx context.Context,
	listingID, bidID uuid.UUID,
	sellerID uint,
) (*models.Bid, error) {
	var accepted *models.Bid

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		listing, err := repo.GetListingByID(ctx, listingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: listing %s", marketerrors.ErrNotFound, listingID)
			}
			return fmt.Errorf("failed to get listing: %w", err)
		}

		if listing.SellerID != sellerID {
			return fmt.Errorf("%w: only the seller may accept bids", marketerrors.ErrNotAuthorized)
		}

		bid, err := repo.GetBidByID(ctx, bidID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: bid %s", marketerrors.ErrNotFound, bidID)
			}
			return fmt.Errorf("failed to get bid: %w", err)
		}
		if bid.ListingID != listingID {
			return fmt.Errorf("%w: bid %s does not belong to listing %s", marketerrors.ErrNotFound, bidID, listingID)
		}
		if bid.Status != models.BidStatusOpen {
			return fmt.Errorf("%w: bid is %s", marketerrors.ErrConflict, bid.Status)
		}

		now := time.Now()

		rows, err := repo.MarkListingSold(ctx, listingID, bid.Amount, now)
		if err != nil {
			return fmt.Errorf("failed to mark listing sold: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: listing is no longer open", marketerrors.ErrConflict)
		}

		rows, err = repo.AcceptOpenBid(ctx, bidID)
		if err != nil {
			return fmt.Errorf("failed to accept bid: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: bid was closed concurrently", marketerrors.ErrConflict)
		}

		if _, err := repo.RejectSiblingBids(ctx, listingID, bidID); err != nil {
			return fmt.Errorf("failed to reject sibling bids: %w", err)
		}

		sale := &models.SaleRecord{
			ID:         uuid.New(),
			ListingID:  listingID,
			BuyerID:    bid.BidderID,
			BuyerName:  bid.BidderName,
			Price:      bid.Amount,
			ExecutedAt: now,
		}
		if err := repo.CreateSaleRecord(ctx, sale); err != nil {
			return fmt.Errorf("failed to append sale record: %w", err)
		}

		bid.Status = models.BidStatusAccepted
		accepted = bid
		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Bid %s accepted on listing %s at %s", bidID, listingID, accepted.Amount)

	s.feed.Publish(realtime.Event{Type: realtime.EventBidAccepted, ListingID: listingID, Payload: accepted})

	return accepted, nil
}

// SweepExpiredBids applies time-based transitions: open bids past their own
// expiry become EXPIRED, and a biddable listing past its deadline goes to
// PENDING when a bid is outstanding or EXPIRED when none is. Running the
// sweep twice produces the same terminal state as running it once.
func (s *BidService) SweepExpiredBids(ctx context.Context) (int, error) {
	now := time.Now()

	transitioned := 0
	var events []realtime.Event

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lapsed, err := repo.ExpireBidsPast(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to expire bids: %w", err)
		}

		// A lapsed bid no longer backs the denormalized current_bid; re-derive
		// it from the open bids that remain so new bids are judged against the
		// true highest.
		for _, listingID := range lapsed {
			if err := repo.RecomputeCurrentBid(ctx, listingID); err != nil {
				return fmt.Errorf("failed to recompute current bid for %s: %w", listingID, err)
			}
		}

		due, err := repo.GetSweepDueListings(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to list due listings: %w", err)
		}

		for _, listing := range due {
			target := models.ListingStatusExpired
			if listing.CurrentBid != nil {
				target = models.ListingStatusPending
			}

			rows, err := repo.TransitionDueListing(ctx, listing.ID, target, now)
			if err != nil {
				return fmt.Errorf("failed to transition listing %s: %w", listing.ID, err)
			}
			if rows == 0 {
				// Another sweep got there first; nothing to re-fire.
				continue
			}

			transitioned++
			events = append(events, realtime.Event{Type: realtime.EventListingSwept, ListingID: listing.ID, Payload: string(target)})
			log.Printf("Listing %s swept to %s", listing.ID, target)
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	for _, event := range events {
		s.feed.Publish(event)
	}

	return transitioned, nil
}

// GetBidsForListing retrieves all bids on a listing
func (s *BidService) GetBidsForListing(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	return s.repo.GetBidsForListing(ctx, listingID)
}

// GetBidsByBidder retrieves all bids placed by a user
func (s *BidService) GetBidsByBidder(ctx context.Context, bidderID uint, limit, offset int) ([]*models.Bid, error) {
	return s.repo.GetBidsByBidder(ctx, bidderID, limit, offset)
}
