package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"storefront/internal/models"

	"go.uber.org/zap"
)

// CreateOrder submits an order. The idempotency key, when set, is sent as
// the Idempotency-Key header.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order, idempotencyKey string) (*models.OrderReceipt, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}

	var receipt models.OrderReceipt
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/orders/",
		path:   "/orders/",
		body:   order,
		header: header,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListOrders returns the current user's orders
func (c *Client) ListOrders(ctx context.Context) ([]models.OrderRecord, error) {
	var raw []models.OrderRecord
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/orders/",
		path:   "/orders/",
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]models.OrderRecord, 0, len(raw))
	for _, o := range raw {
		if err := o.Validate(); err != nil {
			c.logger.Warn("Skipping invalid order from backend", zap.Error(err))
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// GetOrder returns one order with its lines
func (c *Client) GetOrder(ctx context.Context, id int64) (*models.OrderRecord, error) {
	var o models.OrderRecord
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/orders/{id}",
		path:   fmt.Sprintf("/orders/%d", id),
	}, &o)
	if err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("backend returned invalid order: %w", err)
	}
	return &o, nil
}
