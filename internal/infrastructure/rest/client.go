package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"partnerfeed/internal/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// TokenSource yields the bearer token for authenticated requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a thin wrapper over the partner REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// ordersEnvelope accepts both response shapes the backend has been observed
// to return: {"data":{"orders":[...]}} and {"orders":[...]}.
type ordersEnvelope struct {
	Data *struct {
		Orders []BackendOrder `json:"orders"`
	} `json:"data"`
	Orders []BackendOrder `json:"orders"`
}

func (e *ordersEnvelope) orders() []BackendOrder {
	if e.Data != nil {
		return e.Data.Orders
	}
	return e.Orders
}

// ListOrders fetches the partner's full order list.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/partner/orders", nil)
	if err != nil {
		return nil, err
	}

	var env ordersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode orders response: %w", err)
	}

	backendOrders := env.orders()
	orders := make([]domain.Order, 0, len(backendOrders))
	for i := range backendOrders {
		orders = append(orders, backendOrders[i].ToOrder())
	}
	return orders, nil
}

// UpdateOrderStatus moves an order to the given status.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	payload := map[string]string{"status": string(status)}
	_, err := c.do(ctx, http.MethodPatch, "/partner/orders/"+orderID+"/status", payload)
	if err != nil {
		c.logger.Error("Failed to update order status",
			zap.String("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}
	c.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(status)))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	return body, nil
}
