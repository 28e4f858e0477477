package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"reservation-market/internal/marketerrors"
	"reservation-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPlaceBidLadder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	listing := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
		l.MinimumBid = decPtr(t, "100")
	})

	// Below the configured minimum
	_, err := env.bids.PlaceBid(ctx, listing.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "90")})
	if !errors.Is(err, marketerrors.ErrValidation) {
		t.Fatalf("expected validation error for bid below minimum, got %v", err)
	}

	first, err := env.bids.PlaceBid(ctx, listing.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "150")})
	if err != nil {
		t.Fatalf("first bid failed: %v", err)
	}
	if first.Status != models.BidStatusOpen {
		t.Errorf("expected first bid OPEN, got %s", first.Status)
	}
	if first.ExpiresAt == nil || !first.ExpiresAt.After(time.Now()) {
		t.Errorf("expected future bid expiry, got %v", first.ExpiresAt)
	}

	// Tie with the current highest
	_, err = env.bids.PlaceBid(ctx, listing.ID, 11, "bob", &models.PlaceBidRequest{Amount: dec(t, "150")})
	if !errors.Is(err, marketerrors.ErrValidation) {
		t.Fatalf("expected validation error for tying bid, got %v", err)
	}

	second, err := env.bids.PlaceBid(ctx, listing.ID, 11, "bob", &models.PlaceBidRequest{Amount: dec(t, "200")})
	if err != nil {
		t.Fatalf("second bid failed: %v", err)
	}

	updated := reloadListing(t, env.db, listing.ID)
	if updated.CurrentBid == nil || !updated.CurrentBid.Equal(second.Amount) {
		t.Errorf("expected current bid 200, got %v", updated.CurrentBid)
	}

	bids, err := env.bids.GetBidsForListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("failed to list bids: %v", err)
	}
	if len(bids) != 2 {
		t.Fatalf("expected 2 recorded bids, got %d", len(bids))
	}
	// Sorted highest first; recorded amounts are strictly increasing over time
	if !bids[0].Amount.GreaterThan(bids[1].Amount) {
		t.Errorf("expected strictly descending amounts, got %s then %s", bids[0].Amount, bids[1].Amount)
	}
}

func TestPlaceBidValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	buyNowOnly := seedListing(t, env.db, nil)
	_, err := env.bids.PlaceBid(ctx, buyNowOnly.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "100")})
	if !errors.Is(err, marketerrors.ErrValidation) {
		t.Errorf("expected validation error on buy-now-only listing, got %v", err)
	}

	biddable := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
	})
	_, err = env.bids.PlaceBid(ctx, biddable.ID, 10, "alice", &models.PlaceBidRequest{Amount: decimal.Zero})
	if !errors.Is(err, marketerrors.ErrValidation) {
		t.Errorf("expected validation error on zero amount, got %v", err)
	}

	_, err = env.bids.PlaceBid(ctx, uuid.New(), 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "100")})
	if !errors.Is(err, marketerrors.ErrNotFound) {
		t.Errorf("expected not found for unknown listing, got %v", err)
	}

	sold := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
		l.Status = models.ListingStatusSold
	})
	_, err = env.bids.PlaceBid(ctx, sold.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "100")})
	if !errors.Is(err, marketerrors.ErrValidation) {
		t.Errorf("expected validation error on sold listing, got %v", err)
	}
}

func TestPlaceBidRateLimited(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	var listings []*models.Listing
	for i := 0; i < DefaultMaxAttempts+1; i++ {
		listings = append(listings, seedListing(t, env.db, func(l *models.Listing) {
			l.AllowBidding = true
		}))
	}

	for i := 0; i < DefaultMaxAttempts; i++ {
		if _, err := env.bids.PlaceBid(ctx, listings[i].ID, 7, "carol", &models.PlaceBidRequest{Amount: dec(t, "100")}); err != nil {
			t.Fatalf("bid %d should be admitted: %v", i+1, err)
		}
	}

	blocked := listings[DefaultMaxAttempts]
	_, err := env.bids.PlaceBid(ctx, blocked.ID, 7, "carol", &models.PlaceBidRequest{Amount: dec(t, "100")})
	rle, ok := marketerrors.IsRateLimited(err)
	if !ok {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if rle.RemainingSeconds <= 0 {
		t.Errorf("expected positive retry-after, got %+v", rle)
	}

	// A blocked attempt must leave no trace: no bid row, no current bid bump
	var count int64
	env.db.Model(&models.Bid{}).Where("listing_id = ?", blocked.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no bid persisted on blocked listing, got %d", count)
	}
	if reloadListing(t, env.db, blocked.ID).CurrentBid != nil {
		t.Error("expected current bid untouched on blocked attempt")
	}

	// A different user is unaffected
	if _, err := env.bids.PlaceBid(ctx, blocked.ID, 8, "dave", &models.PlaceBidRequest{Amount: dec(t, "100")}); err != nil {
		t.Errorf("other user's bid should be admitted: %v", err)
	}
}

func TestRateLimitWindowRecovers(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	listing := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
	})

	// Seed a full window of already-expired attempts; they must not count
	for i := 0; i < DefaultMaxAttempts; i++ {
		record := &models.RateLimitRecord{
			ID:         uuid.New(),
			UserID:     7,
			ActionType: models.ActionPlaceBid,
			CreatedAt:  time.Now().Add(-10 * time.Minute),
			ExpiresAt:  time.Now().Add(-5 * time.Minute),
		}
		if err := env.db.Create(record).Error; err != nil {
			t.Fatalf("failed to seed rate limit record: %v", err)
		}
	}

	if _, err := env.bids.PlaceBid(ctx, listing.ID, 7, "carol", &models.PlaceBidRequest{Amount: dec(t, "100")}); err != nil {
		t.Fatalf("expected bid admitted after window expiry, got %v", err)
	}

	// Expired records were purged on the way through
	var stale int64
	env.db.Model(&models.RateLimitRecord{}).
		Where("user_id = ? AND expires_at <= ?", 7, time.Now()).
		Count(&stale)
	if stale != 0 {
		t.Errorf("expected expired records purged, found %d", stale)
	}
}

func TestAcceptBid(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	listing := seedListing(t, env.db, func(l *models.Listing) {
		l.SellerID = 1
		l.AllowBidding = true
	})

	low, err := env.bids.PlaceBid(ctx, listing.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "150")})
	if err != nil {
		t.Fatalf("low bid failed: %v", err)
	}
	high, err := env.bids.PlaceBid(ctx, listing.ID, 11, "bob", &models.PlaceBidRequest{Amount: dec(t, "200")})
	if err != nil {
		t.Fatalf("high bid failed: %v", err)
	}

	accepted, err := env.bids.AcceptBid(ctx, listing.ID, high.ID, 1)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != models.BidStatusAccepted {
		t.Errorf("expected accepted status, got %s", accepted.Status)
	}

	updated := reloadListing(t, env.db, listing.ID)
	if updated.Status != models.ListingStatusSold {
		t.Errorf("expected listing SOLD, got %s", updated.Status)
	}
	if !updated.Price.Equal(high.Amount) {
		t.Errorf("expected final price %s, got %s", high.Amount, updated.Price)
	}
	if updated.StockRemaining != 0 {
		t.Errorf("expected zero stock, got %d", updated.StockRemaining)
	}
	if updated.LastSalePrice == nil || !updated.LastSalePrice.Equal(high.Amount) {
		t.Errorf("expected last sale price %s, got %v", high.Amount, updated.LastSalePrice)
	}

	if got := reloadBid(t, env.db, low.ID); got.Status != models.BidStatusRejected {
		t.Errorf("expected sibling bid REJECTED, got %s", got.Status)
	}

	sales, err := env.sales.GetSales(ctx, listing.ID)
	if err != nil {
		t.Fatalf("failed to list sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale record, got %d", len(sales))
	}
	if sales[0].BuyerID != 11 || sales[0].BuyerName != "bob" {
		t.Errorf("expected sale attributed to bob, got %d/%s", sales[0].BuyerID, sales[0].BuyerName)
	}
	if !sales[0].Price.Equal(high.Amount) {
		t.Errorf("expected sale price %s, got %s", high.Amount, sales[0].Price)
	}

	// Re-accepting either bid now conflicts
	if _, err := env.bids.AcceptBid(ctx, listing.ID, high.ID, 1); !errors.Is(err, marketerrors.ErrConflict) {
		t.Errorf("expected conflict on double accept, got %v", err)
	}
	if _, err := env.bids.AcceptBid(ctx, listing.ID, low.ID, 1); !errors.Is(err, marketerrors.ErrConflict) {
		t.Errorf("expected conflict accepting a rejected bid, got %v", err)
	}
}

func TestAcceptBidAuthorization(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	listing := seedListing(t, env.db, func(l *models.Listing) {
		l.SellerID = 1
		l.AllowBidding = true
	})

	bid, err := env.bids.PlaceBid(ctx, listing.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "150")})
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	if _, err := env.bids.AcceptBid(ctx, listing.ID, bid.ID, 99); !errors.Is(err, marketerrors.ErrNotAuthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if reloadListing(t, env.db, listing.ID).Status != models.ListingStatusAvailable {
		t.Error("expected listing untouched after rejected accept")
	}

	// Bid on one listing cannot be accepted through another
	other := seedListing(t, env.db, func(l *models.Listing) {
		l.SellerID = 1
		l.AllowBidding = true
	})
	if _, err := env.bids.AcceptBid(ctx, other.ID, bid.ID, 1); !errors.Is(err, marketerrors.ErrNotFound) {
		t.Errorf("expected not found for foreign bid, got %v", err)
	}
}

func TestSweepExpiredBids(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	withBid := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
		l.BidEndTime = &past
		l.CurrentBid = decPtr(t, "180")
	})
	withoutBid := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
		l.BidEndTime = &past
	})
	lapsedOnly := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
		l.BidEndTime = &past
		l.CurrentBid = decPtr(t, "180")
	})
	notDue := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
		l.BidEndTime = &future
	})

	liveBid := &models.Bid{
		ID:         uuid.New(),
		ListingID:  withBid.ID,
		BidderID:   10,
		BidderName: "alice",
		Amount:     dec(t, "180"),
		Status:     models.BidStatusOpen,
		CreatedAt:  time.Now().Add(-time.Hour),
		ExpiresAt:  &future,
	}
	if err := env.db.Create(liveBid).Error; err != nil {
		t.Fatalf("failed to seed live bid: %v", err)
	}

	staleBid := &models.Bid{
		ID:         uuid.New(),
		ListingID:  lapsedOnly.ID,
		BidderID:   10,
		BidderName: "alice",
		Amount:     dec(t, "180"),
		Status:     models.BidStatusOpen,
		CreatedAt:  time.Now().Add(-96 * time.Hour),
		ExpiresAt:  &past,
	}
	if err := env.db.Create(staleBid).Error; err != nil {
		t.Fatalf("failed to seed stale bid: %v", err)
	}

	transitioned, err := env.bids.SweepExpiredBids(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if transitioned != 3 {
		t.Errorf("expected 3 transitions, got %d", transitioned)
	}

	if got := reloadListing(t, env.db, withBid.ID).Status; got != models.ListingStatusPending {
		t.Errorf("expected listing with live bid PENDING, got %s", got)
	}
	if got := reloadListing(t, env.db, withoutBid.ID).Status; got != models.ListingStatusExpired {
		t.Errorf("expected listing without bid EXPIRED, got %s", got)
	}
	if got := reloadListing(t, env.db, notDue.ID).Status; got != models.ListingStatusAvailable {
		t.Errorf("expected undue listing AVAILABLE, got %s", got)
	}
	if got := reloadBid(t, env.db, staleBid.ID).Status; got != models.BidStatusExpired {
		t.Errorf("expected stale bid EXPIRED, got %s", got)
	}

	// The listing whose only bid lapsed before the deadline holds no live
	// offer: its current_bid clears and it expires rather than going pending
	lapsedAfter := reloadListing(t, env.db, lapsedOnly.ID)
	if lapsedAfter.Status != models.ListingStatusExpired {
		t.Errorf("expected lapsed-bid listing EXPIRED, got %s", lapsedAfter.Status)
	}
	if lapsedAfter.CurrentBid != nil {
		t.Errorf("expected current bid cleared after lapse, got %v", lapsedAfter.CurrentBid)
	}

	// Second sweep is a no-op
	transitioned, err = env.bids.SweepExpiredBids(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if transitioned != 0 {
		t.Errorf("expected idempotent second sweep, got %d transitions", transitioned)
	}
	if got := reloadListing(t, env.db, withBid.ID).Status; got != models.ListingStatusPending {
		t.Errorf("expected PENDING to persist across sweeps, got %s", got)
	}
}

func TestPlaceBidAfterHighestBidLapses(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// No deadline: the listing stays AVAILABLE while its bids age out
	listing := seedListing(t, env.db, func(l *models.Listing) {
		l.AllowBidding = true
	})

	first, err := env.bids.PlaceBid(ctx, listing.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "180")})
	if err != nil {
		t.Fatalf("first bid failed: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if err := env.db.Model(&models.Bid{}).
		Where("id = ?", first.ID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("failed to backdate bid expiry: %v", err)
	}

	if _, err := env.bids.SweepExpiredBids(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// With no open bids left, the denormalized current_bid clears
	swept := reloadListing(t, env.db, listing.ID)
	if swept.Status != models.ListingStatusAvailable {
		t.Fatalf("expected listing still AVAILABLE, got %s", swept.Status)
	}
	if swept.CurrentBid != nil {
		t.Errorf("expected current bid cleared after lapse, got %v", swept.CurrentBid)
	}
	if got := reloadBid(t, env.db, first.ID).Status; got != models.BidStatusExpired {
		t.Errorf("expected lapsed bid EXPIRED, got %s", got)
	}

	// A bid below the lapsed amount but above every open bid is admitted
	second, err := env.bids.PlaceBid(ctx, listing.ID, 11, "bob", &models.PlaceBidRequest{Amount: dec(t, "150")})
	if err != nil {
		t.Fatalf("bid below lapsed amount should be admitted: %v", err)
	}

	updated := reloadListing(t, env.db, listing.ID)
	if updated.CurrentBid == nil || !updated.CurrentBid.Equal(second.Amount) {
		t.Errorf("expected current bid 150, got %v", updated.CurrentBid)
	}
}

func TestAcceptBidAfterSweepToPending(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	deadline := time.Now().Add(48 * time.Hour)
	listing := seedListing(t, env.db, func(l *models.Listing) {
		l.SellerID = 1
		l.AllowBidding = true
		l.BidEndTime = &deadline
	})

	bid, err := env.bids.PlaceBid(ctx, listing.ID, 10, "alice", &models.PlaceBidRequest{Amount: dec(t, "150")})
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	// Deadline passes, sweep moves the listing to PENDING
	if err := env.db.Model(&models.Listing{}).
		Where("id = ?", listing.ID).
		Update("bid_end_time", past).Error; err != nil {
		t.Fatalf("failed to backdate deadline: %v", err)
	}
	if _, err := env.bids.SweepExpiredBids(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if got := reloadListing(t, env.db, listing.ID).Status; got != models.ListingStatusPending {
		t.Fatalf("expected PENDING after sweep, got %s", got)
	}

	// The seller can still settle the outstanding bid
	if _, err := env.bids.AcceptBid(ctx, listing.ID, bid.ID, 1); err != nil {
		t.Fatalf("accept from PENDING failed: %v", err)
	}
	if got := reloadListing(t, env.db, listing.ID).Status; got != models.ListingStatusSold {
		t.Errorf("expected SOLD after accept, got %s", got)
	}

	// But no new bids land on a PENDING-turned-SOLD listing
	_, err = env.bids.PlaceBid(ctx, listing.ID, 11, "bob", &models.PlaceBidRequest{Amount: dec(t, "300")})
	if !errors.Is(err, marketerrors.ErrValidation) {
		t.Errorf("expected validation error bidding on settled listing, got %v", err)
	}
}
