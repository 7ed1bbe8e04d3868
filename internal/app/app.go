package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ErrStale is returned when a response arrived after the user navigated
// away or the session changed; the response was discarded
var ErrStale = errors.New("response no longer matches the current view")

// View is one of the top-level screens
type View string

const (
	ViewCatalog View = "catalog"
	ViewCart    View = "cart"
	ViewProfile View = "profile"
)

// ParseView validates a view name
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewCatalog, ViewCart, ViewProfile:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// Backend is the part of the API client used for order history and admin
// reports
type Backend interface {
	ListOrders(ctx context.Context) ([]models.OrderRecord, error)
	GetOrder(ctx context.Context, id int64) (*models.OrderRecord, error)
	ItemsReport(ctx context.Context) (models.Report, error)
	StatsReport(ctx context.Context) (models.Report, error)
}

// Deps are the components the application state is built from
type Deps struct {
	Backend   Backend
	Sessions  *session.Manager
	Cart      *cart.Engine
	Catalog   *catalog.Catalog
	BannerTTL time.Duration
}

// State is everything a view needs to render
type State struct {
	View        View                `json:"view"`
	User        *models.User        `json:"user,omitempty"`
	Cart        cart.Snapshot       `json:"cart"`
	Delivery    models.DeliveryInfo `json:"delivery"`
	CatalogMode catalog.Mode        `json:"catalog_mode"`
	Banner      *Banner             `json:"banner,omitempty"`
}

// App is the central application state. Views read State and change it
// only through App's methods.
type App struct {
	backend   Backend
	sessions  *session.Manager
	cart      *cart.Engine
	catalog   *catalog.Catalog
	bannerTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	view       View
	delivery   models.DeliveryInfo
	banner     *Banner
	generation uint64
}

// New wires the application state and subscribes to session changes
func New(deps Deps) *App {
	ttl := deps.BannerTTL
	if ttl <= 0 {
		ttl = 4 * time.Second
	}

	a := &App{
		backend:   deps.Backend,
		sessions:  deps.Sessions,
		cart:      deps.Cart,
		catalog:   deps.Catalog,
		bannerTTL: ttl,
		logger:    util.GetLogger(),
		now:       time.Now,
		view:      ViewCatalog,
	}
	deps.Sessions.OnChange(a.onSessionChange)
	return a
}

// Start restores the persisted session and cart and loads the catalog.
// A catalog failure leaves the app running in demo mode.
func (a *App) Start(ctx context.Context) {
	if a.sessions.Restore(ctx) {
		a.logger.Info("Session restored")
	}
	snap := a.cart.Load(ctx)
	a.logger.Info("Cart loaded", zap.Int("lines", len(snap.Lines)))

	if err := a.catalog.Refresh(ctx); err != nil {
		a.logger.Warn("Starting with demo catalog", zap.Error(err))
	}
}

// Cart exposes the cart engine for read-only views
func (a *App) Cart() *cart.Engine {
	return a.cart
}

// Catalog exposes the catalog
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Sessions exposes the session manager
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// State returns a snapshot for rendering
func (a *App) State() State {
	var user *models.User
	if sess := a.sessions.Current(); sess != nil {
		u := sess.User
		user = &u
	}
	cartSnap := a.cart.Snapshot()
	mode := a.catalog.Mode()
	banner := a.Banner()

	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		View:        a.view,
		User:        user,
		Cart:        cartSnap,
		Delivery:    a.delivery,
		CatalogMode: mode,
		Banner:      banner,
	}
}

// View returns the active view
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// Navigate switches the active view. The profile needs a session.
func (a *App) Navigate(v View) error {
	if v == ViewProfile && a.sessions.Current() == nil {
		return session.ErrNoSession
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view != v {
		a.view = v
		a.generation++
	}
	return nil
}

// SetDelivery stores the delivery form fields
func (a *App) SetDelivery(info models.DeliveryInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delivery = info
}

// Delivery returns the delivery form fields
func (a *App) Delivery() models.DeliveryInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delivery
}

func (a *App) currentGeneration() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// onSessionChange resets navigation when a session ends and pushes the
// local cart to the server cart when one begins
func (a *App) onSessionChange(ctx context.Context, change session.Change) {
	a.mu.Lock()
	a.generation++
	if !change.Started() {
		a.view = ViewCatalog
		a.delivery = models.DeliveryInfo{}
		if change.Reason == session.ReasonAuthExpired {
			a.flashLocked(BannerError, "Your session has expired. Please log in again.")
		}
	}
	a.mu.Unlock()

	if change.Started() && change.Reason != session.ReasonRestored {
		a.cart.Reconcile(ctx)
	}
}
