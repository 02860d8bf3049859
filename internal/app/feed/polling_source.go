package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"partnerfeed/internal/domain"
	"partnerfeed/internal/metrics"
)

// OrdersAPI is the slice of the partner REST API the feed consumes.
type OrdersAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// PollingOrderSource keeps the order list fresh by refetching it wholesale
// on a fixed interval. Polling has no per-event granularity, so each fetch
// replaces the prior snapshot entirely; a failed fetch is a transient error,
// not a disconnect, and the source always reports itself connected.
type PollingOrderSource struct {
	api          OrdersAPI
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Registry

	mu         sync.Mutex
	orders     []domain.Order
	lastUpdate time.Time
	loading    bool
	stop       chan struct{}
}

func NewPollingOrderSource(api OrdersAPI, interval, fetchTimeout time.Duration, logger *zap.Logger, m *metrics.Registry) *PollingOrderSource {
	return &PollingOrderSource{
		api:          api,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      m,
		loading:      true,
	}
}

// Start fetches once immediately, then refetches every interval until Stop.
// Starting an already started source is a no-op.
func (p *PollingOrderSource) Start(ctx context.Context) {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.logger.Info("Order polling started", zap.Duration("interval", p.interval))
	if _, err := p.fetch(ctx); err != nil {
		p.logger.Warn("Initial order fetch failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.fetch(ctx); err != nil {
					p.logger.Warn("Order poll failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the timer. Idempotent.
func (p *PollingOrderSource) Stop() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()
	p.logger.Info("Order polling stopped")
}

// RefreshOrders performs a manual one-shot fetch, independent of the timer.
func (p *PollingOrderSource) RefreshOrders(ctx context.Context) ([]domain.Order, error) {
	return p.fetch(ctx)
}

func (p *PollingOrderSource) fetch(ctx context.Context) ([]domain.Order, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	orders, err := p.api.ListOrders(fetchCtx)
	if err != nil {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		return nil, err
	}

	snapshot := make([]domain.Order, 0, len(orders))
	for i := range orders {
		snapshot = append(snapshot, orders[i].Clone())
	}

	p.mu.Lock()
	p.orders = snapshot
	p.lastUpdate = time.Now()
	p.loading = false
	p.mu.Unlock()

	p.metrics.PollCycles.Inc()
	p.logger.Debug("Order snapshot refreshed", zap.Int("count", len(snapshot)))
	return orders, nil
}

// UpdateOrderOptimistically patches the in-memory snapshot locally; the next
// poll confirms or overwrites it.
func (p *PollingOrderSource) UpdateOrderOptimistically(orderID string, patch domain.OrderPatch) {
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

func (p *PollingOrderSource) Orders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Order, 0, len(p.orders))
	for i := range p.orders {
		out = append(out, p.orders[i].Clone())
	}
	return out
}

func (p *PollingOrderSource) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *PollingOrderSource) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}

// ConnectionStatus is always connected: polling has no notion of a broken
// transport.
func (p *PollingOrderSource) ConnectionStatus() domain.ConnectionState {
	return domain.StateConnected
}

func (p *PollingOrderSource) IsConnected() bool { return true }
