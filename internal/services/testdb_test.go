package services

import (
	"fmt"
	"testing"
	"time"

	"reservation-market/internal/models"
	"reservation-market/internal/realtime"
	"reservation-market/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// One shared-cache memory DB per test; it lives as long as the pool
	// holds a connection, which gorm does for the duration of the test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Listing{},
		&models.Bid{},
		&models.SaleRecord{},
		&models.RateLimitRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

type testEnv struct {
	db       *gorm.DB
	repo     *repository.Repository
	feed     *realtime.Hub
	limiter  *RateLimitService
	bids     *BidService
	listings *ListingService
	sales    *SaleService
}

func setupEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	feed := realtime.NewHub()
	limiter := NewRateLimitService(repo, DefaultMaxAttempts, DefaultWindowSeconds)

	return &testEnv{
		db:       db,
		repo:     repo,
		feed:     feed,
		limiter:  limiter,
		bids:     NewBidService(db, repo, limiter, feed, 3),
		listings: NewListingService(db, repo, feed),
		sales:    NewSaleService(repo),
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	d := dec(t, s)
	return &d
}

// seedListing inserts a listing row directly, bypassing service validation
func seedListing(t *testing.T, db *gorm.DB, mutate func(*models.Listing)) *models.Listing {
	listing := &models.Listing{
		ID:              uuid.New(),
		SellerID:        1,
		RestaurantName:  "Osteria Nonna",
		Location:        "North End",
		Cuisine:         "Italian",
		PartySize:       2,
		ReservationTime: time.Now().Add(48 * time.Hour),
		Price:           decimal.NewFromInt(250),
		OriginalPrice:   decimal.NewFromInt(250),
		Status:          models.ListingStatusAvailable,
		StockRemaining:  1,
		CreatedAt:       time.Now(),
	}
	if mutate != nil {
		mutate(listing)
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("failed to seed listing: %v", err)
	}
	return listing
}

func reloadListing(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Listing {
	var listing models.Listing
	if err := db.Where("id = ?", id).First(&listing).Error; err != nil {
		t.Fatalf("failed to reload listing %s: %v", id, err)
	}
	return &listing
}

func reloadBid(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Bid {
	var bid models.Bid
	if err := db.Where("id = ?", id).First(&bid).Error; err != nil {
		t.Fatalf("failed to reload bid %s: %v", id, err)
	}
	return &bid
}
