package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Event kinds pushed on the change feed
const (
	EventBidPlaced      = "bid_placed"
	EventBidAccepted    = "bid_accepted"
	EventListingSold    = "listing_sold"
	EventListingUpdated = "listing_updated"
	EventListingSwept   = "listing_swept"
)

// Event is one change notification for a listing. The feed is advisory and
// at-least-once: consumers refresh their view from the store, they never
// apply events as state.
type Event struct {
	Type      string      `json:"type"`
	ListingID uuid.UUID   `json:"listing_id"`
	Payload   interface{} `json:"payload,omitempty"`
}

type subscriber struct {
	events chan Event
}

// Hub fans listing change events out to websocket subscribers keyed by
// listing id
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// Subscribe registers for events on one listing. The returned cancel func
// must be called when the consumer goes away.
func (h *Hub) Subscribe(listingID uuid.UUID) (<-chan Event, func()) {
	sub := &subscriber{events: make(chan Event, 32)}

	h.mu.Lock()
	if h.subscribers[listingID] == nil {
		h.subscribers[listingID] = make(map[*subscriber]struct{})
	}
	h.subscribers[listingID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[listingID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, listingID)
			}
		}
		h.mu.Unlock()
	}

	return sub.events, cancel
}

// Publish delivers an event to every subscriber of the listing. Slow
// consumers are skipped rather than blocking the publisher; the feed carries
// no transactional guarantees.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[event.ListingID] {
		select {
		case sub.events <- event:
		default:
		}
	}
}

// SubscriberCount reports how many consumers watch a listing
func (h *Hub) SubscriberCount(listingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[listingID])
}
