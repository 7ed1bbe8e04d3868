package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/models"
)

// AddToCart adds one unit of an item to the server-side cart
func (c *Client) AddToCart(ctx context.Context, itemID int64) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/cart/",
		path:   "/cart/",
		query:  url.Values{"item_id": []string{strconv.FormatInt(itemID, 10)}},
	}, nil)
}

// GetCart returns the server-side cart rows
func (c *Client) GetCart(ctx context.Context) ([]models.ServerCartItem, error) {
	var out []models.ServerCartItem
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/cart/",
		path:   "/cart/",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveFromCart removes an item from the server-side cart
func (c *Client) RemoveFromCart(ctx context.Context, itemID int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/cart/{itemId}",
		path:   fmt.Sprintf("/cart/%d", itemID),
	}, nil)
}

// ClearCart empties the server-side cart
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/cart/",
		path:   "/cart/",
	}, nil)
}
