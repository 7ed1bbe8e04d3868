package apiclient

import (
	"context"
	"net/http"

	"storefront/internal/models"
)

// ItemsReport fetches the admin items report
func (c *Client) ItemsReport(ctx context.Context) (models.Report, error) {
	return c.report(ctx, "/admin/reports/items")
}

// StatsReport fetches the admin statistics report
func (c *Client) StatsReport(ctx context.Context) (models.Report, error) {
	return c.report(ctx, "/admin/reports/stats")
}

func (c *Client) report(ctx context.Context, path string) (models.Report, error) {
	var out models.Report
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  path,
		path:   path,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
