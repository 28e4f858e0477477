package services

import (
	"context"
	"fmt"
	"time"

	"reservation-market/internal/models"
	"reservation-market/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleService exposes the append-only transaction ledger and the market
// statistics derived from it. Stats are a pure function of the record set.
type SaleService struct {
	repo *repository.Repository
}

func NewSaleService(repo *repository.Repository) *SaleService {
	return &SaleService{repo: repo}
}

// AppendSale appends one executed sale to the ledger
func (s *SaleService) AppendSale(
	ctx context.Context,
	listingID uuid.UUID,
	buyerID uint,
	buyerName string,
	price decimal.Decimal,
) (*models.SaleRecord, error) {
	sale := &models.SaleRecord{
		ID:         uuid.New(),
		ListingID:  listingID,
		BuyerID:    buyerID,
		BuyerName:  buyerName,
		Price:      price,
		ExecutedAt: time.Now(),
	}

	if err := s.repo.CreateSaleRecord(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to append sale record: %w", err)
	}
	return sale, nil
}

// GetSales retrieves the sale history of a listing, newest first
func (s *SaleService) GetSales(ctx context.Context, listingID uuid.UUID) ([]*models.SaleRecord, error) {
	return s.repo.GetSalesForListing(ctx, listingID)
}

// MarketStats computes last sale price, 30-day average, all-time high/low and
// sales count for a listing. The 30-day average is nil when the window holds
// no sales.
func (s *SaleService) MarketStats(ctx context.Context, listingID uuid.UUID) (*models.MarketStats, error) {
	count, high, low, err := s.repo.GetSaleAggregates(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	stats := &models.MarketStats{
		SalesCount: count,
		HighPrice:  high,
		LowPrice:   low,
	}

	if count == 0 {
		return stats, nil
	}

	last, err := s.repo.GetLastSale(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last sale: %w", err)
	}
	if last != nil {
		stats.LastSalePrice = &last.Price
	}

	since := time.Now().AddDate(0, 0, -30)
	avg, err := s.repo.GetAveragePriceSince(ctx, listingID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute 30-day average: %w", err)
	}
	stats.ThirtyDayAvg = avg

	return stats, nil
}
