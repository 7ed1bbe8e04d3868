package app

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Orders loads the order history of the current user. A failed load yields
// an empty list. A response that arrives after the user navigated away or
// the session changed is dropped with ErrStale; an expired session is
// reported as such.
func (a *App) Orders(ctx context.Context) ([]models.OrderRecord, error) {
	ctx, span := util.StartSpan(ctx, "App.Orders")
	defer span.End()

	if a.sessions.Current() == nil {
		return nil, session.ErrNoSession
	}

	gen := a.currentGeneration()
	orders, err := a.backend.ListOrders(ctx)
	if errors.Is(err, apiclient.ErrAuthExpired) {
		return nil, err
	}
	if gen != a.currentGeneration() {
		return nil, ErrStale
	}
	if err != nil {
		a.logger.Error("Failed to load orders", zap.Error(err))
		return []models.OrderRecord{}, nil
	}
	if orders == nil {
		orders = []models.OrderRecord{}
	}
	return orders, nil
}

// Order loads a single order of the current user
func (a *App) Order(ctx context.Context, id int64) (*models.OrderRecord, error) {
	if a.sessions.Current() == nil {
		return nil, session.ErrNoSession
	}

	gen := a.currentGeneration()
	order, err := a.backend.GetOrder(ctx, id)
	if errors.Is(err, apiclient.ErrAuthExpired) {
		return nil, err
	}
	if gen != a.currentGeneration() {
		return nil, ErrStale
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return order, nil
}

// Report kinds accepted by Report
const (
	ReportItems = "items"
	ReportStats = "stats"
)

// Report fetches a read-only admin report
func (a *App) Report(ctx context.Context, kind string) (models.Report, error) {
	switch kind {
	case ReportItems:
		return a.backend.ItemsReport(ctx)
	case ReportStats:
		return a.backend.StatsReport(ctx)
	default:
		return nil, fmt.Errorf("unknown report %q", kind)
	}
}
