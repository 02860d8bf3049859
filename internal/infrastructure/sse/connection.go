package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"partnerfeed/internal/domain"
	"partnerfeed/internal/infrastructure/rest"
	"partnerfeed/internal/metrics"
)

var ErrConnectionFailed = errors.New("sse connection failed")

// Events the server sends purely for liveness; they never reach listeners.
const (
	eventConnected = "connected"
	eventHeartbeat = "heartbeat"
)

// Connection owns a single order event stream over HTTP. It performs the
// handshake, feeds the response body through a Framer and maps frames to
// domain events. It never reconnects itself: stream end or a read error is
// reported once through onDown and the caller decides what happens next.
type Connection struct {
	url              string
	handshakeTimeout time.Duration
	heartbeatTimeout time.Duration
	client           *http.Client
	onEvent          func(domain.OrderEvent)
	onDown           func(error)
	logger           *zap.Logger
	metrics          *metrics.Registry

	mu sync.Mutex
	// gen identifies the current open; it bumps on every Open and Close so
	// goroutines left over from an earlier stream see themselves as stale
	// and leave the shared state alone.
	gen      uint64
	state    domain.ConnectionState
	lastData time.Time
	cancel   context.CancelFunc
}

func NewConnection(
	url string,
	handshakeTimeout time.Duration,
	heartbeatTimeout time.Duration,
	onEvent func(domain.OrderEvent),
	onDown func(error),
	logger *zap.Logger,
	m *metrics.Registry,
) *Connection {
	return &Connection{
		url:              url,
		handshakeTimeout: handshakeTimeout,
		heartbeatTimeout: heartbeatTimeout,
		client: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: handshakeTimeout},
		},
		onEvent: onEvent,
		onDown:  onDown,
		logger:  logger,
		metrics: m,
		state:   domain.StateDisconnected,
	}
}

func (c *Connection) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open performs the handshake and starts reading the stream. It is a no-op
// while a connect attempt or an open stream is in flight. A non-2xx status
// or a missing body fails immediately and leaves no partial state behind.
func (c *Connection) Open(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.state != domain.StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	connCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.state = domain.StateConnecting
	c.cancel = cancel
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.url, nil)
	if err != nil {
		c.abortConnect(gen, cancel)
		return fmt.Errorf("%w: create request: %v", ErrConnectionFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		c.abortConnect(gen, cancel)
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.abortConnect(gen, cancel)
		return fmt.Errorf("%w: HTTP %d %s", ErrConnectionFailed, resp.StatusCode, resp.Status)
	}
	if resp.Body == nil {
		c.abortConnect(gen, cancel)
		return fmt.Errorf("%w: response without body", ErrConnectionFailed)
	}

	c.mu.Lock()
	if gen != c.gen {
		// Closed while the handshake was in flight.
		c.mu.Unlock()
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: closed during handshake", ErrConnectionFailed)
	}
	c.state = domain.StateConnected
	c.lastData = time.Now()
	c.mu.Unlock()
	c.logger.Info("Order stream connected", zap.String("url", c.url))
	c.metrics.StreamConnected.Set(1)

	go c.readLoop(connCtx, gen, resp.Body)
	if c.heartbeatTimeout > 0 {
		go c.watchdog(connCtx, gen, cancel)
	}
	return nil
}

// Close aborts the in-flight read and marks the connection disconnected.
// Safe to call any number of times, in any state. Bumping gen here makes
// every goroutine of the current stream stale, so a reopened connection
// keeps its own cancel func even while the old read loop is still draining.
func (c *Connection) Close() {
	c.mu.Lock()
	c.gen++
	c.state = domain.StateDisconnected
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.metrics.StreamConnected.Set(0)
}

func (c *Connection) abortConnect(gen uint64, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	if gen == c.gen {
		c.state = domain.StateDisconnected
		c.cancel = nil
	}
	c.mu.Unlock()
}

func (c *Connection) readLoop(ctx context.Context, gen uint64, body io.ReadCloser) {
	defer body.Close()

	framer := &Framer{}
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.lastData = time.Now()
			c.mu.Unlock()
			for _, fr := range framer.Push(buf[:n]) {
				c.handleFrame(fr)
			}
		}
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				// This stream was superseded by Close or a newer Open; its
				// end is not an observable failure.
				c.mu.Unlock()
				return
			}
			c.gen++
			c.state = domain.StateDisconnected
			cancel := c.cancel
			c.cancel = nil
			c.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			c.metrics.StreamConnected.Set(0)
			if err == io.EOF {
				c.logger.Info("Order stream ended by server")
			} else {
				c.logger.Warn("Order stream read failed", zap.Error(err))
			}
			c.onDown(err)
			return
		}
	}
}

// watchdog tears the stream down when neither events nor heartbeats arrive
// within the heartbeat timeout. The resulting read error funnels into the
// normal onDown path.
func (c *Connection) watchdog(ctx context.Context, gen uint64, cancel context.CancelFunc) {
	ticker := time.NewTicker(c.heartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current := gen == c.gen
			stale := time.Since(c.lastData) > c.heartbeatTimeout
			c.mu.Unlock()
			if !current {
				return
			}
			if stale {
				c.logger.Warn("Order stream stale, dropping connection",
					zap.Duration("heartbeat_timeout", c.heartbeatTimeout))
				cancel()
				return
			}
		}
	}
}

func (c *Connection) handleFrame(fr Frame) {
	if fr.Event == eventConnected || fr.Event == eventHeartbeat {
		c.logger.Debug("Stream liveness frame", zap.String("event", fr.Event))
		return
	}
	if fr.Data == "" {
		return
	}

	event, err := decodeEvent(fr)
	if err != nil {
		c.logger.Warn("Dropping malformed stream frame",
			zap.String("event", fr.Event),
			zap.Error(err))
		c.metrics.FramesDropped.Inc()
		return
	}
	c.onEvent(event)
}

// framePayload is the JSON body of order frames; the embedded order uses
// the same backend DTO as the REST responses. Cancellations may carry only
// the order id.
type framePayload struct {
	Order   *rest.BackendOrder `json:"order"`
	OrderID string             `json:"orderId"`
	Message string             `json:"message"`
}

func decodeEvent(fr Frame) (domain.OrderEvent, error) {
	kind := domain.EventKind(fr.Event)
	switch kind {
	case domain.EventNewOrder, domain.EventOrderUpdated, domain.EventOrderCancelled:
	default:
		return domain.OrderEvent{}, fmt.Errorf("unknown event type %q", fr.Event)
	}

	var payload framePayload
	if err := json.Unmarshal([]byte(fr.Data), &payload); err != nil {
		return domain.OrderEvent{}, fmt.Errorf("decode payload: %w", err)
	}

	event := domain.OrderEvent{Kind: kind, OrderID: payload.OrderID, Message: payload.Message}
	if payload.Order != nil {
		order := payload.Order.ToOrder()
		event.OrderID = order.ID
		event.Order = &order
	}
	if err := event.Validate(); err != nil {
		return domain.OrderEvent{}, err
	}
	return event, nil
}
