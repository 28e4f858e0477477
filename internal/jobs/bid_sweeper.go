package jobs

import (
	"context"
	"time"

	"reservation-market/internal/services"

	log "github.com/sirupsen/logrus"
)

// BidSweeper periodically applies time-based bid and listing expiry
type BidSweeper struct {
	bidService *services.BidService
	interval   time.Duration
	stopChan   chan struct{}
}

// NewBidSweeper creates a new expiry sweep job
func NewBidSweeper(bidService *services.BidService, interval time.Duration) *BidSweeper {
	return &BidSweeper{
		bidService: bidService,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the sweep loop
func (bs *BidSweeper) Start() {
	log.Printf("[BidSweeper] Starting expiry sweep job (interval: %v)", bs.interval)

	ticker := time.NewTicker(bs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bs.sweep()
		case <-bs.stopChan:
			log.Println("[BidSweeper] Stopping expiry sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (bs *BidSweeper) Stop() {
	close(bs.stopChan)
}

func (bs *BidSweeper) sweep() {
	ctx := context.Background()

	transitioned, err := bs.bidService.SweepExpiredBids(ctx)
	if err != nil {
		log.Printf("[BidSweeper] Sweep error: %v", err)
		return
	}

	if transitioned > 0 {
		log.Printf("[BidSweeper] Transitioned %d listings", transitioned)
	}
}
