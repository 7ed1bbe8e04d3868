package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultPageLimit is used when ItemFilter.Limit is zero
const DefaultPageLimit = 100

// ItemFilter narrows GET /items/. Zero values are omitted.
type ItemFilter struct {
	Skip       int
	Limit      int
	CategoryID int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

func (f ItemFilter) values() url.Values {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	q := url.Values{}
	q.Set("skip", strconv.Itoa(f.Skip))
	q.Set("limit", strconv.Itoa(limit))
	if f.CategoryID > 0 {
		q.Set("category_id", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.MinPrice != nil && f.MinPrice.IsPositive() {
		q.Set("min_price", f.MinPrice.String())
	}
	if f.MaxPrice != nil && f.MaxPrice.IsPositive() {
		q.Set("max_price", f.MaxPrice.String())
	}
	return q
}

// ListItems returns a page of catalog items
func (c *Client) ListItems(ctx context.Context, f ItemFilter) ([]models.Product, error) {
	var raw []models.Product
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/items/",
		path:   "/items/",
		query:  f.values(),
	}, &raw)
	if err != nil {
		return nil, err
	}
	return c.validProducts(raw), nil
}

// SearchItems runs a backend text search
func (c *Client) SearchItems(ctx context.Context, query string) ([]models.Product, error) {
	var raw []models.Product
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/items/search",
		path:   "/items/search",
		query:  url.Values{"q": []string{query}},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return c.validProducts(raw), nil
}

// GetItem returns a single item
func (c *Client) GetItem(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/items/{id}",
		path:   fmt.Sprintf("/items/%d", id),
	}, &p)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("backend returned invalid item: %w", err)
	}
	return &p, nil
}

// CreateItem adds an item to the catalog
func (c *Client) CreateItem(ctx context.Context, in models.ItemInput) (*models.Product, error) {
	var p models.Product
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/items/",
		path:   "/items/",
		body:   in,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateItem replaces an item's fields
func (c *Client) UpdateItem(ctx context.Context, id int64, in models.ItemInput) (*models.Product, error) {
	var p models.Product
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/items/{id}",
		path:   fmt.Sprintf("/items/%d", id),
		body:   in,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteItem removes an item from the catalog
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/items/{id}",
		path:   fmt.Sprintf("/items/%d", id),
	}, nil)
}

func (c *Client) validProducts(raw []models.Product) []models.Product {
	out := make([]models.Product, 0, len(raw))
	for _, p := range raw {
		if err := p.Validate(); err != nil {
			c.logger.Warn("Skipping invalid product from backend", zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}
