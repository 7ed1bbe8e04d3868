package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ErrProductNotFound is returned when a product id is not in the catalog
var ErrProductNotFound = errors.New("product not found")

// Mode tells whether the catalog is backed by the live backend
type Mode string

const (
	ModeLive        Mode = "LIVE"
	ModeOfflineDemo Mode = "OFFLINE_DEMO"
)

// Source is the part of the API client the catalog reads from
type Source interface {
	ListItems(ctx context.Context, f apiclient.ItemFilter) ([]models.Product, error)
	SearchItems(ctx context.Context, query string) ([]models.Product, error)
	GetItem(ctx context.Context, id int64) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Filter narrows the loaded products. Zero values match everything.
type Filter struct {
	CategoryID int64  `form:"category_id" json:"category_id,omitempty"`
	Query      string `form:"q" json:"q,omitempty"`
}

// View is the catalog as presented to the user
type View struct {
	Mode       Mode              `json:"mode"`
	Error      string            `json:"error,omitempty"`
	Filter     Filter            `json:"filter"`
	Products   []models.Product  `json:"products"`
	Categories []models.Category `json:"categories"`
}

// Catalog caches the product list and switches to demo data when the
// backend cannot be reached
type Catalog struct {
	source Source
	demo   *DemoData
	logger *zap.Logger

	mu         sync.RWMutex
	mode       Mode
	lastErr    string
	products   []models.Product
	categories []models.Category
}

// New creates a catalog. It starts empty in LIVE mode until Refresh runs.
func New(source Source) *Catalog {
	return &Catalog{
		source: source,
		demo:   Demo(),
		logger: util.GetLogger(),
		mode:   ModeLive,
	}
}

// Refresh reloads items and categories. When either request fails the
// catalog switches to OFFLINE_DEMO and the error is returned; a later
// successful refresh goes back to LIVE.
func (c *Catalog) Refresh(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Catalog.Refresh")
	defer span.End()

	products, err := c.source.ListItems(ctx, apiclient.ItemFilter{})
	var categories []models.Category
	if err == nil {
		categories, err = c.source.ListCategories(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.mode = ModeOfflineDemo
		c.lastErr = fmt.Sprintf("Failed to load products: %s", apiclient.DetailOr(err, err.Error()))
		c.products = c.demo.Products
		c.categories = c.demo.Categories
		util.CatalogModeGauge.Set(1)
		c.logger.Warn("Catalog switched to demo data", zap.Error(err))
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if c.mode != ModeLive {
		c.logger.Info("Catalog back to live data")
	}
	c.mode = ModeLive
	c.lastErr = ""
	c.products = products
	c.categories = categories
	util.CatalogModeGauge.Set(0)
	return nil
}

// Mode returns the current catalog mode
func (c *Catalog) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// View returns the loaded catalog narrowed by f
func (c *Catalog) View(f Filter) View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return View{
		Mode:       c.mode,
		Error:      c.lastErr,
		Filter:     f,
		Products:   filterProducts(c.products, f),
		Categories: append([]models.Category{}, c.categories...),
	}
}

// Search delegates the text query to the backend in LIVE mode and narrows
// the result by category. In demo mode, or when the backend search fails,
// the loaded products are filtered locally.
func (c *Catalog) Search(ctx context.Context, f Filter) View {
	query := strings.TrimSpace(f.Query)
	if query == "" || c.Mode() != ModeLive {
		return c.View(f)
	}

	found, err := c.source.SearchItems(ctx, query)
	if err != nil {
		c.logger.Warn("Backend search failed, filtering locally",
			zap.String("query", query),
			zap.Error(err))
		return c.View(f)
	}

	view := c.View(Filter{})
	view.Filter = f
	view.Products = filterProducts(found, Filter{CategoryID: f.CategoryID})
	return view
}

// Product resolves a product by id from the loaded list, asking the backend
// for products that are not loaded
func (c *Catalog) Product(ctx context.Context, id int64) (models.Product, error) {
	c.mu.RLock()
	mode := c.mode
	for _, p := range c.products {
		if p.ID == id {
			c.mu.RUnlock()
			return p, nil
		}
	}
	c.mu.RUnlock()

	if mode != ModeLive {
		return models.Product{}, ErrProductNotFound
	}

	p, err := c.source.GetItem(ctx, id)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, err
	}
	if err := p.Validate(); err != nil {
		return models.Product{}, fmt.Errorf("backend returned invalid product: %w", err)
	}
	return *p, nil
}

func filterProducts(products []models.Product, f Filter) []models.Product {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.DisplayName()), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}
