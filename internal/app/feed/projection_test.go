package feed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"partnerfeed/internal/domain"
)

func order(id string, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:     id,
		Status: status,
		Items:  []domain.OrderItem{{ID: id + "-item", Name: "Shirt", Quantity: 1, Price: 50}},
	}
}

func TestNewOrdersPrependMostRecentFirst(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "1", Order: order("1", domain.StatusPending)})
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "2", Order: order("2", domain.StatusPending)})

	orders := p.Orders()
	require.Len(t, orders, 2)
	require.Equal(t, "2", orders[0].ID)
	require.Equal(t, "1", orders[1].ID)
}

func TestUpdateReplacesWholesale(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "1", Order: order("1", domain.StatusPending)})

	updated := order("1", domain.StatusInProcess)
	updated.CustomerName = "Asha Rao"
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventOrderUpdated, OrderID: "1", Order: updated})

	orders := p.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, domain.StatusInProcess, orders[0].Status)
	require.Equal(t, "Asha Rao", orders[0].CustomerName)
}

func TestUpdateForUnknownOrderIsNoOp(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventOrderUpdated, OrderID: "ghost", Order: order("ghost", domain.StatusConfirmed)})
	require.Empty(t, p.Orders())
}

func TestCancelRemovesOrder(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "1", Order: order("1", domain.StatusPending)})
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "2", Order: order("2", domain.StatusPending)})

	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventOrderCancelled, OrderID: "1"})
	orders := p.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, "2", orders[0].ID)

	// Cancelling an unknown order is tolerated.
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventOrderCancelled, OrderID: "ghost"})
	require.Len(t, p.Orders(), 1)
}

func TestServerEventOverwritesOptimisticPatch(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "X", Order: order("X", domain.StatusPending)})

	confirmed := domain.StatusConfirmed
	p.UpdateOrderOptimistically("X", domain.OrderPatch{Status: &confirmed})
	require.Equal(t, domain.StatusConfirmed, p.Orders()[0].Status)

	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventOrderUpdated, OrderID: "X", Order: order("X", domain.StatusInProcess)})
	require.Equal(t, domain.StatusInProcess, p.Orders()[0].Status)
}

func TestOptimisticPatchForUnknownOrderIsNoOp(t *testing.T) {
	p := NewOrderListProjection()
	confirmed := domain.StatusConfirmed
	p.UpdateOrderOptimistically("ghost", domain.OrderPatch{Status: &confirmed})
	require.Empty(t, p.Orders())
}

func TestReplaceInstallsSnapshotWholesale(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "old", Order: order("old", domain.StatusPending)})

	p.Replace([]domain.Order{*order("a", domain.StatusConfirmed), *order("b", domain.StatusPending)})
	orders := p.Orders()
	require.Len(t, orders, 2)
	require.Equal(t, "a", orders[0].ID)
	require.Equal(t, "b", orders[1].ID)
}

func TestCallersOnlyGetCopies(t *testing.T) {
	p := NewOrderListProjection()
	p.ApplyEvent(domain.OrderEvent{Kind: domain.EventNewOrder, OrderID: "1", Order: order("1", domain.StatusPending)})

	out := p.Orders()
	out[0].Status = domain.StatusFailed
	out[0].Items[0].Name = "mutated"

	fresh := p.Orders()
	require.Equal(t, domain.StatusPending, fresh[0].Status)
	require.Equal(t, "Shirt", fresh[0].Items[0].Name)
}
