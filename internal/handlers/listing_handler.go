package handlers

import (
	"net/http"
	"strconv"

	"reservation-market/internal/auth"
	"reservation-market/internal/models"
	"reservation-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ListingHandler struct {
	listingService *services.ListingService
	saleService    *services.SaleService
}

func NewListingHandler(listingService *services.ListingService, saleService *services.SaleService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		saleService:    saleService,
	}
}

// CreateListing lists a reservation for sale
// POST /api/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	sellerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), sellerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// GetListing retrieves a listing by ID
// GET /api/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// GetListings retrieves listings with optional status filter
// GET /api/listings
func (h *ListingHandler) GetListings(c *gin.Context) {
	limit, offset := parsePagination(c)
	status := models.ListingStatus(c.Query("status"))

	listings, total, err := h.listingService.GetListings(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"total":    total,
	})
}

// BuyNow purchases one unit at the ask price
// POST /api/listings/:id/buy
func (h *ListingHandler) BuyNow(c *gin.Context) {
	buyerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	buyerName, _ := auth.GetDisplayName(c)

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	sale, err := h.listingService.BuyNow(c.Request.Context(), listingID, buyerID, buyerName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sale)
}

// UpdateAsk updates the ask price of a listing
// PUT /api/listings/:id/ask
func (h *ListingHandler) UpdateAsk(c *gin.Context) {
	sellerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	var req models.UpdateAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.listingService.UpdateAsk(c.Request.Context(), listingID, sellerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// DeleteListing removes an available listing
// DELETE /api/listings/:id
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	sellerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, sellerID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetMarketStats retrieves ledger-derived market statistics for a listing
// GET /api/listings/:id/stats
func (h *ListingHandler) GetMarketStats(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	stats, err := h.saleService.MarketStats(c.Request.Context(), listingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSaleHistory retrieves the sale ledger entries for a listing
// GET /api/listings/:id/sales
func (h *ListingHandler) GetSaleHistory(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	sales, err := h.saleService.GetSales(c.Request.Context(), listingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get sale history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sales": sales,
		"total": len(sales),
	})
}

// parsePagination parses limit/offset query parameters with defaults
func parsePagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
