package domain

import "errors"

// EventKind values match the wire event names of the order stream.
type EventKind string

const (
	EventNewOrder       EventKind = "new_order"
	EventOrderUpdated   EventKind = "order_updated"
	EventOrderCancelled EventKind = "order_cancelled"
)

// OrderEvent is the unit of real-time order information delivered to feed
// listeners. Order carries the full snapshot for new and updated orders and
// is absent for cancellations.
type OrderEvent struct {
	Kind    EventKind
	OrderID string
	Order   *Order
	Message string
}

var (
	ErrEventMissingOrderID = errors.New("order event without order id")
	ErrEventMissingOrder   = errors.New("order event without order snapshot")
)

func (e OrderEvent) Validate() error {
	if e.OrderID == "" {
		return ErrEventMissingOrderID
	}
	if e.Kind != EventOrderCancelled && e.Order == nil {
		return ErrEventMissingOrder
	}
	return nil
}

// ConnectionState describes a single stream connection. Transitions are
// Disconnected -> Connecting -> Connected -> Disconnected; a connect call
// while connecting or connected is a no-op.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)
