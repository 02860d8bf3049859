package feed

import (
	"sync"
	"time"

	"partnerfeed/internal/domain"
)

// OrderListProjection is the materialized order list the UI layer reads.
// It folds stream events into a most-recent-first collection keyed by order
// ID and exclusively owns that collection: values are copied on the way in
// and on the way out, so no caller can mutate or observe it mid-update.
type OrderListProjection struct {
	mu         sync.Mutex
	orders     []domain.Order
	lastUpdate time.Time
}

func NewOrderListProjection() *OrderListProjection {
	return &OrderListProjection{}
}

// ApplyEvent folds one stream event into the list. Updates and cancels for
// unknown order IDs are silently tolerated; the order may predate this
// session.
func (p *OrderListProjection) ApplyEvent(event domain.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Kind {
	case domain.EventNewOrder:
		if event.Order == nil {
			return
		}
		p.orders = append([]domain.Order{event.Order.Clone()}, p.orders...)
	case domain.EventOrderUpdated:
		if event.Order == nil {
			return
		}
		for i := range p.orders {
			if p.orders[i].ID == event.OrderID {
				p.orders[i] = event.Order.Clone()
				break
			}
		}
	case domain.EventOrderCancelled:
		for i := range p.orders {
			if p.orders[i].ID == event.OrderID {
				p.orders = append(p.orders[:i], p.orders[i+1:]...)
				break
			}
		}
	default:
		return
	}
	p.lastUpdate = time.Now()
}

// Replace installs a full snapshot, discarding the prior list wholesale.
func (p *OrderListProjection) Replace(orders []domain.Order) {
	next := make([]domain.Order, 0, len(orders))
	for i := range orders {
		next = append(next, orders[i].Clone())
	}
	p.mu.Lock()
	p.orders = next
	p.lastUpdate = time.Now()
	p.mu.Unlock()
}

// UpdateOrderOptimistically patches the matching order locally without
// waiting for server confirmation. A later real event for the same order
// overwrites the patch wholesale.
func (p *OrderListProjection) UpdateOrderOptimistically(orderID string, patch domain.OrderPatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.orders {
		if p.orders[i].ID == orderID {
			p.orders[i].ApplyPatch(patch)
			p.lastUpdate = time.Now()
			return
		}
	}
}

// Orders returns a copy of the current list, most recent first.
func (p *OrderListProjection) Orders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Order, 0, len(p.orders))
	for i := range p.orders {
		out = append(out, p.orders[i].Clone())
	}
	return out
}

func (p *OrderListProjection) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}
