package domain

import "time"

type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusConfirmed        OrderStatus = "confirmed"
	StatusPickupScheduled  OrderStatus = "pickup_scheduled"
	StatusPickedUp         OrderStatus = "picked_up"
	StatusInProcess        OrderStatus = "in_process"
	StatusReadyForDelivery OrderStatus = "ready_for_delivery"
	StatusOutForDelivery   OrderStatus = "out_for_delivery"
	StatusDelivered        OrderStatus = "delivered"
	StatusRejected         OrderStatus = "rejected"
	StatusFailed           OrderStatus = "failed"
)

// IsTerminal reports whether no further status transitions are expected.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusRejected || s == StatusFailed
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPickupScheduled, StatusPickedUp,
		StatusInProcess, StatusReadyForDelivery, StatusOutForDelivery,
		StatusDelivered, StatusRejected, StatusFailed:
		return true
	}
	return false
}

type OrderItem struct {
	ID       string
	Name     string
	Quantity int
	Price    float64
}

// Order is the consumer-visible order entity held by the feed projection.
type Order struct {
	ID                string
	CustomerID        string
	CustomerName      string
	PhoneNumber       string
	PickupAddress     string
	PlacedAt          time.Time
	Status            OrderStatus
	TotalAmount       float64
	GST               float64
	DeliveryFee       float64
	ItemsAmount       float64
	DeliveryPartnerID string
	Distance          float64
	Items             []OrderItem
}

// Clone returns a deep copy. The projection only ever hands out and stores
// copies so no caller can observe a list mid-update.
func (o *Order) Clone() Order {
	c := *o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

// OrderPatch is a partial order update applied optimistically; nil fields
// are left untouched.
type OrderPatch struct {
	Status            *OrderStatus
	DeliveryPartnerID *string
}

func (o *Order) ApplyPatch(p OrderPatch) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.DeliveryPartnerID != nil {
		o.DeliveryPartnerID = *p.DeliveryPartnerID
	}
}
