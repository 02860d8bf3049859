package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"partnerfeed/internal/config"
	"partnerfeed/internal/domain"
	"partnerfeed/internal/metrics"
)

// OrderActionsAPI extends the read API with the status transitions the
// partner can trigger from the dashboard.
type OrderActionsAPI interface {
	OrdersAPI
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// ConnectionInfo is what the UI layer needs to render connectivity: it can
// infer "real-time unavailable, using periodic refresh" from Strategy and
// IsRealTime without ever seeing a raw error.
type ConnectionInfo struct {
	Strategy         config.Strategy
	IsRealTime       bool
	LastUpdate       time.Time
	ConnectionStatus domain.ConnectionState
}

// OrderFeedManager selects between the SSE and polling order sources and
// presents one unified surface regardless of which is active. SSE is used
// only when both the configured strategy and the per-partner feature flag
// say so. If the stream exhausts its retry budget and the global polling
// fallback is enabled, the manager switches to polling for the remainder of
// the session; the switch is one-directional to avoid oscillation.
type OrderFeedManager struct {
	cfg        *config.Config
	api        OrderActionsAPI
	stream     *OrderStreamService
	polling    *PollingOrderSource
	projection *OrderListProjection
	logger     *zap.Logger
	metrics    *metrics.Registry

	mu          sync.Mutex
	strategy    config.Strategy
	unsubscribe func()
	loading     bool
	stop        chan struct{}
}

func NewOrderFeedManager(
	cfg *config.Config,
	api OrderActionsAPI,
	stream *OrderStreamService,
	logger *zap.Logger,
	m *metrics.Registry,
) *OrderFeedManager {
	return &OrderFeedManager{
		cfg:        cfg,
		api:        api,
		stream:     stream,
		polling:    NewPollingOrderSource(api, cfg.PollingInterval, cfg.FetchTimeout, logger.With(zap.String("component", "PollingOrderSource")), m),
		projection: NewOrderListProjection(),
		logger:     logger,
		metrics:    m,
	}
}

// Start picks the source for this session and activates it. partnerID feeds
// the per-partner SSE rollout flag.
func (m *OrderFeedManager) Start(ctx context.Context, partnerID string) {
	strategy := config.StrategyPolling
	if m.cfg.Strategy == config.StrategySSE && m.cfg.SSEEnabledForPartner(partnerID) {
		strategy = config.StrategySSE
	}

	m.mu.Lock()
	m.strategy = strategy
	m.stop = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("Order feed starting",
		zap.String("strategy", string(strategy)),
		zap.String("partner_id", partnerID))

	if strategy == config.StrategySSE {
		m.startStream(ctx)
		return
	}
	m.polling.Start(ctx)
}

func (m *OrderFeedManager) startStream(ctx context.Context) {
	m.setLoading(true)

	// Every successful (re)connect is followed by a full refetch: events
	// that fired server-side while the stream was down are not replayed.
	m.stream.SetOnConnected(func() {
		if _, err := m.refetchIntoProjection(context.Background()); err != nil {
			m.logger.Warn("Post-connect order refetch failed", zap.Error(err))
		}
	})

	unsubscribe := m.stream.Subscribe(m.projection.ApplyEvent)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	if _, err := m.refetchIntoProjection(ctx); err != nil {
		m.logger.Warn("Initial order fetch failed", zap.Error(err))
	}
	m.setLoading(false)

	go m.watchForFailover(ctx)
}

// watchForFailover observes the stream and switches to polling once the SSE
// path has given up retrying.
func (m *OrderFeedManager) watchForFailover(ctx context.Context) {
	m.mu.Lock()
	stop := m.stop
	m.mu.Unlock()
	if stop == nil {
		// Stopped before the watcher got going.
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.cfg.PollingFallbackEnabled {
				continue
			}
			if m.stream.State() == domain.StateDisconnected && !m.Loading() {
				m.failover(ctx)
				return
			}
		}
	}
}

func (m *OrderFeedManager) failover(ctx context.Context) {
	m.mu.Lock()
	if m.stop == nil || m.strategy == config.StrategyPolling {
		// Already on polling, or Stop ran while the watcher was deciding.
		m.mu.Unlock()
		return
	}
	m.strategy = config.StrategyPolling
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	m.logger.Warn("Order stream unavailable, falling back to polling")
	m.metrics.Failovers.Inc()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.polling.Start(ctx)
}

// Stop shuts down whichever source is active. Idempotent.
func (m *OrderFeedManager) Stop() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.polling.Stop()
}

// Strategy reports which source is currently active.
func (m *OrderFeedManager) Strategy() config.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategy
}

// Orders returns the current order list from the active source.
func (m *OrderFeedManager) Orders() []domain.Order {
	if m.Strategy() == config.StrategyPolling {
		return m.polling.Orders()
	}
	return m.projection.Orders()
}

func (m *OrderFeedManager) Loading() bool {
	if m.Strategy() == config.StrategyPolling {
		return m.polling.Loading()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// RefreshOrders performs a manual fetch through the active source, e.g. for
// pull-to-refresh.
func (m *OrderFeedManager) RefreshOrders(ctx context.Context) ([]domain.Order, error) {
	if m.Strategy() == config.StrategyPolling {
		return m.polling.RefreshOrders(ctx)
	}
	return m.refetchIntoProjection(ctx)
}

// UpdateOrderOptimistically patches the active source's copy of the order.
func (m *OrderFeedManager) UpdateOrderOptimistically(orderID string, patch domain.OrderPatch) {
	if m.Strategy() == config.StrategyPolling {
		m.polling.UpdateOrderOptimistically(orderID, patch)
		return
	}
	m.projection.UpdateOrderOptimistically(orderID, patch)
}

// ConnectionInfo summarizes the feed's connectivity for the UI layer.
func (m *OrderFeedManager) ConnectionInfo() ConnectionInfo {
	strategy := m.Strategy()
	if strategy == config.StrategyPolling {
		return ConnectionInfo{
			Strategy:         strategy,
			IsRealTime:       false,
			LastUpdate:       m.polling.LastUpdate(),
			ConnectionStatus: m.polling.ConnectionStatus(),
		}
	}
	state := m.stream.State()
	return ConnectionInfo{
		Strategy:         strategy,
		IsRealTime:       state == domain.StateConnected,
		LastUpdate:       m.projection.LastUpdate(),
		ConnectionStatus: state,
	}
}

// AcceptOrder confirms a pending order: server first, then an optimistic
// local patch so the UI reflects it before the confirming event or poll.
func (m *OrderFeedManager) AcceptOrder(ctx context.Context, orderID string) error {
	return m.transitionOrder(ctx, orderID, domain.StatusConfirmed)
}

// RejectOrder declines a pending order.
func (m *OrderFeedManager) RejectOrder(ctx context.Context, orderID string) error {
	return m.transitionOrder(ctx, orderID, domain.StatusRejected)
}

// MarkReadyForDelivery flags a processed order for pickup by delivery.
func (m *OrderFeedManager) MarkReadyForDelivery(ctx context.Context, orderID string) error {
	return m.transitionOrder(ctx, orderID, domain.StatusReadyForDelivery)
}

// ErrOrderFinalized rejects actions on orders whose lifecycle is over.
var ErrOrderFinalized = errors.New("order is already in a terminal status")

func (m *OrderFeedManager) transitionOrder(ctx context.Context, orderID string, status domain.OrderStatus) error {
	for _, o := range m.Orders() {
		if o.ID == orderID {
			if o.Status.IsTerminal() {
				return ErrOrderFinalized
			}
			break
		}
	}
	if err := m.api.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return err
	}
	m.UpdateOrderOptimistically(orderID, domain.OrderPatch{Status: &status})
	return nil
}

func (m *OrderFeedManager) refetchIntoProjection(ctx context.Context) ([]domain.Order, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	orders, err := m.api.ListOrders(fetchCtx)
	if err != nil {
		return nil, err
	}
	m.projection.Replace(orders)
	return orders, nil
}

func (m *OrderFeedManager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}
