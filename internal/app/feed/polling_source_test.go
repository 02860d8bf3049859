package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"partnerfeed/internal/domain"
	"partnerfeed/internal/metrics"
)

type fakeOrdersAPI struct {
	mu      sync.Mutex
	orders  []domain.Order
	err     error
	fetches int
}

func (f *fakeOrdersAPI) ListOrders(ctx context.Context) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Order, len(f.orders))
	copy(out, f.orders)
	return out, nil
}

func (f *fakeOrdersAPI) setOrders(orders []domain.Order) {
	f.mu.Lock()
	f.orders = orders
	f.mu.Unlock()
}

func (f *fakeOrdersAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newTestPollingSource(api OrdersAPI, interval time.Duration) *PollingOrderSource {
	return NewPollingOrderSource(api, interval, time.Second, zap.NewNop(), metrics.NewRegistry())
}

func TestPollingFetchesImmediatelyThenOnInterval(t *testing.T) {
	api := &fakeOrdersAPI{orders: []domain.Order{*order("1", domain.StatusPending)}}
	p := newTestPollingSource(api, 20*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()

	require.Equal(t, 1, api.fetchCount()) // immediate fetch, before any tick
	require.Len(t, p.Orders(), 1)
	require.False(t, p.Loading())

	require.Eventually(t, func() bool { return api.fetchCount() >= 3 },
		time.Second, 5*time.Millisecond)
}

func TestPollingReplacesSnapshotWholesale(t *testing.T) {
	api := &fakeOrdersAPI{orders: []domain.Order{*order("1", domain.StatusPending), *order("2", domain.StatusPending)}}
	p := newTestPollingSource(api, 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()
	require.Len(t, p.Orders(), 2)

	api.setOrders([]domain.Order{*order("3", domain.StatusConfirmed)})
	require.Eventually(t, func() bool {
		orders := p.Orders()
		return len(orders) == 1 && orders[0].ID == "3"
	}, time.Second, 5*time.Millisecond)
}

func TestPollingStopHaltsTimer(t *testing.T) {
	api := &fakeOrdersAPI{}
	p := newTestPollingSource(api, 10*time.Millisecond)

	p.Start(context.Background())
	p.Stop()
	p.Stop() // idempotent

	count := api.fetchCount()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, count, api.fetchCount())
}

func TestPollingFailedFetchIsTransient(t *testing.T) {
	api := &fakeOrdersAPI{err: errors.New("backend down")}
	p := newTestPollingSource(api, 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()

	// A failed fetch is not a disconnect.
	require.True(t, p.IsConnected())
	require.Equal(t, domain.StateConnected, p.ConnectionStatus())
	require.False(t, p.Loading())
	require.Empty(t, p.Orders())
}

func TestPollingOptimisticPatchUntilNextPoll(t *testing.T) {
	api := &fakeOrdersAPI{orders: []domain.Order{*order("1", domain.StatusPending)}}
	p := newTestPollingSource(api, time.Hour)

	p.Start(context.Background())
	defer p.Stop()

	confirmed := domain.StatusConfirmed
	p.UpdateOrderOptimistically("1", domain.OrderPatch{Status: &confirmed})
	require.Equal(t, domain.StatusConfirmed, p.Orders()[0].Status)

	// A manual refresh brings back server state.
	_, err := p.RefreshOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, p.Orders()[0].Status)
}

func TestPollingManualRefreshIndependentOfTimer(t *testing.T) {
	api := &fakeOrdersAPI{}
	p := newTestPollingSource(api, time.Hour)

	p.Start(context.Background())
	defer p.Stop()
	require.Equal(t, 1, api.fetchCount())

	_, err := p.RefreshOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, api.fetchCount())
}
