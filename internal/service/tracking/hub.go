package tracking

import (
	"sync"
)

// OrderEvent mirrors the payload built by the orders_notify_change trigger.
type OrderEvent struct {
	OrderID   uint   `json:"order_id"`
	UserID    uint   `json:"user_id"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

const subscriberBuffer = 8

// Hub fans order events out to per-order subscribers. Publish never blocks;
// a subscriber that stops draining its channel loses events.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint]map[chan OrderEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint]map[chan OrderEvent]struct{})}
}

// Subscribe registers interest in a single order. The returned cancel func
// is idempotent and closes the channel.
func (h *Hub) Subscribe(orderID uint) (<-chan OrderEvent, func()) {
	ch := make(chan OrderEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[chan OrderEvent]struct{})
		h.subs[orderID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[orderID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, orderID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(ev OrderEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.OrderID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many channels listen on an order.
func (h *Hub) Subscribers(orderID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}
