package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-process storefront backend
type fakeBackend struct {
	mu sync.Mutex

	orderStatus  int
	orderBody    string
	ordersStatus int
	itemsDown    bool
	ordersGate   chan struct{}
	ordersHit    chan struct{}
	removeGate   chan struct{}
	removeHit    chan struct{}

	calls []string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.RequestURI())
	orderStatus, orderBody, ordersStatus := f.orderStatus, f.orderBody, f.ordersStatus
	itemsDown, gate, hit := f.itemsDown, f.ordersGate, f.ordersHit
	removeGate, removeHit := f.removeGate, f.removeHit
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/auth/login":
		fmt.Fprintf(w, `{"access_token":"tok-%s","token_type":"bearer","user_id":4}`, r.PostFormValue("username"))
	case r.URL.Path == "/items/":
		if itemsDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[
			{"id":1,"title":"MacBook Pro","price":1000,"category_id":1},
			{"id":2,"title":"Magic Mouse","price":50,"category_id":2}
		]`))
	case strings.HasPrefix(r.URL.Path, "/items/"):
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Item not found"}`))
	case r.URL.Path == "/categories/":
		w.Write([]byte(`[{"id":1,"name":"Laptops"},{"id":2,"name":"Mice"}]`))
	case r.URL.Path == "/cart/" && r.Method == http.MethodGet:
		w.Write([]byte(`[]`))
	case strings.HasPrefix(r.URL.Path, "/cart/") && r.Method == http.MethodDelete && r.URL.Path != "/cart/":
		if removeHit != nil {
			removeHit <- struct{}{}
			<-removeGate
		}
		w.Write([]byte(`{"message":"Item removed"}`))
	case r.URL.Path == "/orders/" && r.Method == http.MethodPost:
		w.WriteHeader(orderStatus)
		w.Write([]byte(orderBody))
	case r.URL.Path == "/orders/" && r.Method == http.MethodGet:
		if hit != nil {
			hit <- struct{}{}
			<-gate
		}
		w.WriteHeader(ordersStatus)
		if ordersStatus == http.StatusUnauthorized {
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		w.Write([]byte(`[{"id":9,"user_id":4,"total_price":1220,"status":"pending"}]`))
	default:
		w.Write([]byte(`{}`))
	}
}

func (f *fakeBackend) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

type fixture struct {
	app     *App
	backend *fakeBackend
	persist *store.Persistent
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{
		orderStatus:  http.StatusCreated,
		orderBody:    `{"message":"Order created","order_id":42,"status":"success"}`,
		ordersStatus: http.StatusOK,
	}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := apiclient.New(srv.URL, 5*time.Second)
	persist := store.NewPersistent(store.NewMemory())
	sessions := session.NewManager(client, persist)
	client.Use(sessions)

	f := &fixture{backend: backend, persist: persist, clock: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
	f.app = New(Deps{
		Backend:   client,
		Sessions:  sessions,
		Cart:      cart.NewEngine(client, sessions, persist, cart.DefaultPricing()),
		Catalog:   catalog.New(client),
		BannerTTL: 4 * time.Second,
	})
	f.app.now = func() time.Time { return f.clock }
	f.app.Start(context.Background())
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.app.Login(context.Background(), models.Credentials{Email: "ann@example.com", Password: "secret"})
	require.NoError(t, err)
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []int64{1, 2, 2} {
		_, err := f.app.AddToCart(ctx, id)
		require.NoError(t, err)
	}
}

func TestCheckoutFailureKeepsCartAndForm(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.fillCart(t)
	f.backend.mu.Lock()
	f.backend.orderStatus = http.StatusBadRequest
	f.backend.orderBody = `{"detail":"Not enough stock"}`
	f.backend.mu.Unlock()

	form := models.DeliveryInfo{Address: "Main st 1", Phone: "555-0100"}
	f.app.SetDelivery(form)

	_, err := f.app.Checkout(context.Background())

	var failed *cart.CheckoutFailedError
	require.ErrorAs(t, err, &failed)

	state := f.app.State()
	assert.Len(t, state.Cart.Lines, 2)
	assert.Equal(t, form, state.Delivery)
	require.NotNil(t, state.Banner)
	assert.Equal(t, BannerError, state.Banner.Kind)
	assert.Equal(t, "Not enough stock", state.Banner.Message)
}

func TestCheckoutSuccessClearsCartAndForm(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.fillCart(t)
	f.app.SetDelivery(models.DeliveryInfo{Address: "Main st 1", Phone: "555-0100"})

	receipt, err := f.app.Checkout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), receipt.OrderID)

	state := f.app.State()
	assert.Empty(t, state.Cart.Lines)
	assert.Equal(t, models.DeliveryInfo{}, state.Delivery)
	assert.Equal(t, BannerSuccess, state.Banner.Kind)
	assert.True(t, f.backend.called("DELETE /cart/"))
}

func TestCheckoutWithoutSessionMakesNoCall(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.app.SetDelivery(models.DeliveryInfo{Address: "Main st 1", Phone: "555-0100"})

	_, err := f.app.Checkout(context.Background())

	var vErr *cart.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.False(t, f.backend.called("POST /orders/"))
	assert.Len(t, f.app.State().Cart.Lines, 2)
}

func TestUnauthorizedResetsToCatalog(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.app.Navigate(ViewProfile))
	f.app.SetDelivery(models.DeliveryInfo{Address: "Main st 1"})

	f.backend.mu.Lock()
	f.backend.ordersStatus = http.StatusUnauthorized
	f.backend.mu.Unlock()

	_, err := f.app.Orders(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrAuthExpired)

	state := f.app.State()
	assert.Equal(t, ViewCatalog, state.View)
	assert.Nil(t, state.User)
	assert.Equal(t, models.DeliveryInfo{}, state.Delivery)
	require.NotNil(t, state.Banner)
	assert.Equal(t, BannerError, state.Banner.Kind)

	ctx := context.Background()
	var token string
	assert.False(t, f.persist.Load(ctx, store.KeyToken, &token))
	var user models.User
	assert.False(t, f.persist.Load(ctx, store.KeyUser, &user))
}

func TestLateUnauthorizedKeepsNewSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	require.NoError(t, f.app.Navigate(ViewProfile))

	f.backend.mu.Lock()
	f.backend.ordersStatus = http.StatusUnauthorized
	f.backend.ordersGate = make(chan struct{})
	f.backend.ordersHit = make(chan struct{}, 1)
	gate, hit := f.backend.ordersGate, f.backend.ordersHit
	f.backend.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.app.Orders(ctx)
		done <- err
	}()

	<-hit
	f.app.Logout(ctx)
	_, err := f.app.Login(ctx, models.Credentials{Email: "bob@example.com", Password: "secret"})
	require.NoError(t, err)
	close(gate)

	err = <-done
	assert.ErrorIs(t, err, ErrStale)
	assert.False(t, errors.Is(err, apiclient.ErrAuthExpired))

	state := f.app.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "bob@example.com", state.User.Email)
	require.NotNil(t, state.Banner)
	assert.Equal(t, BannerSuccess, state.Banner.Kind)

	var token string
	require.True(t, f.persist.Load(ctx, store.KeyToken, &token))
	assert.Equal(t, "tok-bob@example.com", token)
}

func TestStateShowsPendingRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	f.fillCart(t)

	f.backend.mu.Lock()
	f.backend.removeGate = make(chan struct{})
	f.backend.removeHit = make(chan struct{}, 1)
	gate, hit := f.backend.removeGate, f.backend.removeHit
	f.backend.mu.Unlock()

	done := make(chan cart.Snapshot, 1)
	go func() {
		done <- f.app.RemoveFromCart(ctx, 2)
	}()

	<-hit
	state := f.app.State()
	assert.Equal(t, []int64{2}, state.Cart.Removing)
	require.Len(t, state.Cart.Lines, 1)
	assert.Equal(t, int64(1), state.Cart.Lines[0].ProductID)

	close(gate)
	snap := <-done
	assert.Empty(t, snap.Removing)
	assert.Empty(t, f.app.State().Cart.Removing)
	assert.True(t, f.backend.called("DELETE /cart/2"))
}

func TestLogoutResetsNavigation(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.app.Navigate(ViewCart))

	f.app.Logout(context.Background())

	assert.Equal(t, ViewCatalog, f.app.View())
	assert.ErrorIs(t, f.app.Navigate(ViewProfile), session.ErrNoSession)
}

func TestLoginReconcilesGuestCart(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	assert.False(t, f.backend.called("POST /cart/?item_id=1"))

	f.login(t)

	assert.True(t, f.backend.called("GET /cart/"))
	assert.True(t, f.backend.called("POST /cart/?item_id=1"))
	assert.True(t, f.backend.called("POST /cart/?item_id=2"))
}

func TestOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.Orders(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	f.login(t)
	orders, err := f.app.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(9), orders[0].ID)

	f.backend.mu.Lock()
	f.backend.ordersStatus = http.StatusInternalServerError
	f.backend.mu.Unlock()

	orders, err = f.app.Orders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrdersDroppedAfterNavigation(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.app.Navigate(ViewProfile))

	f.backend.mu.Lock()
	f.backend.ordersGate = make(chan struct{})
	f.backend.ordersHit = make(chan struct{}, 1)
	gate, hit := f.backend.ordersGate, f.backend.ordersHit
	f.backend.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.app.Orders(context.Background())
		done <- err
	}()

	<-hit
	require.NoError(t, f.app.Navigate(ViewCatalog))
	close(gate)

	assert.ErrorIs(t, <-done, ErrStale)
}

func TestBannerExpires(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.AddToCart(context.Background(), 2)
	require.NoError(t, err)

	b := f.app.Banner()
	require.NotNil(t, b)
	assert.Equal(t, "Magic Mouse added to cart", b.Message)

	f.clock = f.clock.Add(5 * time.Second)
	assert.Nil(t, f.app.Banner())
}

func TestStartInDemoMode(t *testing.T) {
	f := newFixture(t)
	f.backend.mu.Lock()
	f.backend.itemsDown = true
	f.backend.mu.Unlock()

	f.app.Start(context.Background())
	assert.Equal(t, catalog.ModeOfflineDemo, f.app.State().CatalogMode)

	snap, err := f.app.AddToCart(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "Apple Magic Mouse", snap.Lines[0].Name)
}

func TestAddUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.AddToCart(context.Background(), 999)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestParseView(t *testing.T) {
	v, err := ParseView("cart")
	require.NoError(t, err)
	assert.Equal(t, ViewCart, v)

	_, err = ParseView("admin")
	assert.Error(t, err)
}
