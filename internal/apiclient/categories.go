package apiclient

import (
	"context"
	"net/http"

	"storefront/internal/models"
)

// ListCategories returns all categories
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/categories/",
		path:   "/categories/",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCategory adds a category
func (c *Client) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	var out models.Category
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/categories/",
		path:   "/categories/",
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
