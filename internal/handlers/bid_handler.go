package handlers

import (
	"net/http"

	"reservation-market/internal/auth"
	"reservation-market/internal/models"
	"reservation-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BidHandler struct {
	bidService *services.BidService
}

func NewBidHandler(bidService *services.BidService) *BidHandler {
	return &BidHandler{
		bidService: bidService,
	}
}

// PlaceBid places a bid on a listing
// POST /api/listings/:id/bids
func (h *BidHandler) PlaceBid(c *gin.Context) {
	bidderID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	bidderName, _ := auth.GetDisplayName(c)

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	var req models.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bid, err := h.bidService.PlaceBid(c.Request.Context(), listingID, bidderID, bidderName, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// AcceptBid accepts an open bid on a listing owned by the caller
// POST /api/listings/:id/bids/:bidId/accept
func (h *BidHandler) AcceptBid(c *gin.Context) {
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

	bidID, err := uuid.Parse(c.Param("bidId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid id"})
		return
	}

	bid, err := h.bidService.AcceptBid(c.Request.Context(), listingID, bidID, sellerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bid)
}

// GetListingBids retrieves all bids on a listing
// GET /api/listings/:id/bids
func (h *BidHandler) GetListingBids(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	bids, err := h.bidService.GetBidsForListing(c.Request.Context(), listingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get bids"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bids":  bids,
		"total": len(bids),
	})
}

// GetMyBids retrieves the caller's bids
// GET /api/my/bids
func (h *BidHandler) GetMyBids(c *gin.Context) {
	bidderID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := parsePagination(c)

	bids, err := h.bidService.GetBidsByBidder(c.Request.Context(), bidderID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get bids"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bids":  bids,
		"total": len(bids),
	})
}
