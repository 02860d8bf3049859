package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"partnerfeed/internal/config"
	"partnerfeed/internal/domain"
	"partnerfeed/internal/infrastructure/sse"
	"partnerfeed/internal/metrics"
)

// TokenSource yields the persisted bearer token before each connect
// attempt. An empty token is a hard failure for stream connects.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StreamConn is a single order event stream connection.
type StreamConn interface {
	Open(ctx context.Context, token string) error
	Close()
	State() domain.ConnectionState
}

// ConnFactory builds the connection the service drives. Injected so tests
// can substitute a fake transport.
type ConnFactory func(onEvent func(domain.OrderEvent), onDown func(error)) StreamConn

// Listener receives every order event, in stream order. Handlers must be
// cheap: they run synchronously on the delivery path.
type Listener func(domain.OrderEvent)

// OrderStreamService is the public real-time order API. It owns the
// connect/disconnect lifecycle tied to the listener registry: the first
// subscriber triggers a connect, the last unsubscribe a disconnect. Failures
// are retried with exponential backoff up to the configured ceiling; once
// exhausted the service stays disconnected until the next Connect call, and
// exhaustion is observable only as that terminal state, never an error.
type OrderStreamService struct {
	tokens      TokenSource
	newConn     ConnFactory
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *zap.Logger
	metrics     *metrics.Registry

	mu             sync.Mutex
	conn           StreamConn
	listeners      map[int]Listener
	nextListenerID int
	attempts       int
	reconnectTimer *time.Timer
	onConnected    func()
}

func NewOrderStreamService(tokens TokenSource, newConn ConnFactory, cfg config.SSEConfig, logger *zap.Logger, m *metrics.Registry) *OrderStreamService {
	return &OrderStreamService{
		tokens:      tokens,
		newConn:     newConn,
		maxAttempts: cfg.MaxReconnectAttempts,
		baseDelay:   cfg.InitialReconnectDelay,
		maxDelay:    cfg.MaxReconnectDelay,
		logger:      logger,
		metrics:     m,
		listeners:   make(map[int]Listener),
	}
}

// SetOnConnected registers a hook invoked after every successful (re)connect.
// The feed manager uses it to refetch the full order list, covering events
// that occurred server-side while the stream was down.
func (s *OrderStreamService) SetOnConnected(fn func()) {
	s.mu.Lock()
	s.onConnected = fn
	s.mu.Unlock()
}

// Subscribe registers a listener and returns its unsubscribe function. The
// first subscriber connects the stream; removing the last disconnects it.
func (s *OrderStreamService) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = l
	first := len(s.listeners) == 1
	s.mu.Unlock()

	if first {
		s.Connect(context.Background())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			last := len(s.listeners) == 0
			s.mu.Unlock()
			if last {
				s.Disconnect()
			}
		})
	}
}

// Connect opens the stream. A no-op while already connecting or connected.
func (s *OrderStreamService) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.conn == nil {
		s.conn = s.newConn(s.broadcast, s.handleStreamDown)
	}
	conn := s.conn
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.mu.Unlock()

	if state := conn.State(); state != domain.StateDisconnected {
		return
	}

	token, err := s.tokens.Token(ctx)
	if err != nil || token == "" {
		s.logger.Warn("No authentication token for order stream", zap.Error(err))
		s.handleFailure()
		return
	}

	if err := conn.Open(ctx, token); err != nil {
		s.logger.Warn("Order stream connect failed", zap.Error(err))
		s.handleFailure()
		return
	}

	s.mu.Lock()
	s.attempts = 0
	onConnected := s.onConnected
	s.mu.Unlock()
	if onConnected != nil {
		go onConnected()
	}
}

// Disconnect cancels any pending reconnect and closes the connection.
// Idempotent: safe in any state.
func (s *OrderStreamService) Disconnect() {
	s.mu.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// State reports the stream's effective state. A pending reconnect counts as
// connecting: only when the retry budget is spent (or nothing was ever
// started) does the service report disconnected.
func (s *OrderStreamService) State() domain.ConnectionState {
	s.mu.Lock()
	conn := s.conn
	pending := s.reconnectTimer != nil
	s.mu.Unlock()

	if conn != nil {
		if state := conn.State(); state != domain.StateDisconnected {
			return state
		}
	}
	if pending {
		return domain.StateConnecting
	}
	return domain.StateDisconnected
}

func (s *OrderStreamService) IsConnected() bool {
	return s.State() == domain.StateConnected
}

func (s *OrderStreamService) handleStreamDown(err error) {
	s.logger.Warn("Order stream lost", zap.Error(err))
	s.handleFailure()
}

func (s *OrderStreamService) handleFailure() {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		// Nobody is subscribed; the stream was torn down on purpose.
		s.mu.Unlock()
		return
	}
	s.attempts++
	attempt := s.attempts
	if !sse.ShouldRetry(attempt, s.maxAttempts) {
		s.mu.Unlock()
		s.logger.Warn("Max order stream reconnect attempts reached",
			zap.Int("max_attempts", s.maxAttempts))
		return
	}
	delay := sse.NextDelay(attempt, s.baseDelay, s.maxDelay)
	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.Connect(context.Background())
	})
	s.mu.Unlock()

	s.metrics.Reconnects.Inc()
	s.logger.Info("Order stream reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
}

// broadcast delivers one event to every current listener, synchronously and
// in stream order. A panicking listener is contained so the rest still run.
func (s *OrderStreamService) broadcast(event domain.OrderEvent) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.metrics.EventsReceived.Inc()
	for _, l := range listeners {
		s.notify(l, event)
	}
}

func (s *OrderStreamService) notify(l Listener, event domain.OrderEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Order event listener panicked",
				zap.String("order_id", event.OrderID),
				zap.Any("panic", r))
		}
	}()
	l(event)
}
