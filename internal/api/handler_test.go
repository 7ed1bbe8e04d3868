package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/app"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/session"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendStub answers the storefront backend routes the view API touches
func backendStub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/auth/login":
		r.ParseForm()
		if r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","user_id":4}`))
	case r.URL.Path == "/items/":
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
	case r.URL.Path == "/orders/" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Order created","order_id":42,"status":"success"}`))
	case r.URL.Path == "/admin/reports/stats":
		w.Write([]byte(`{"orders":12,"revenue":15000}`))
	default:
		w.Write([]byte(`{}`))
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(http.HandlerFunc(backendStub))
	t.Cleanup(srv.Close)

	client := apiclient.New(srv.URL, 5*time.Second)
	persist := store.NewPersistent(store.NewMemory())
	sessions := session.NewManager(client, persist)
	client.Use(sessions)

	a := app.New(app.Deps{
		Backend:  client,
		Sessions: sessions,
		Cart:     cart.NewEngine(client, sessions, persist, cart.DefaultPricing()),
		Catalog:  catalog.New(client),
	})
	a.Start(context.Background())

	r := gin.New()
	NewHandler(a, []string{"http://localhost:3000"}).SetupRoutes(r)
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = do(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "LIVE", decode(t, w)["catalog_mode"])

	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogFilter(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/api/v1/catalog?category_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	products := body["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "Magic Mouse", products[0].(map[string]any)["title"])

	w = do(r, http.MethodGet, "/api/v1/catalog?category_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartFlow(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPut, "/api/v1/cart/items/2", gin.H{"quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	totals := decode(t, w)["totals"].(map[string]any)
	assert.Equal(t, float64(3), totals["item_count"])
	assert.Equal(t, "1220", totals["total"])

	w = do(r, http.MethodPut, "/api/v1/cart/items/2", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["lines"], 1)

	w = do(r, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["lines"])
}

func TestCartValidation(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": 99})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/api/v1/cart/items/x", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/cart/items/1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutRequiresSession(t *testing.T) {
	r := setupRouter(t)
	do(r, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": 1})
	do(r, http.MethodPut, "/api/v1/checkout/delivery", gin.H{"address": "Main st 1", "phone": "555"})

	w := do(r, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please log in before placing an order", decode(t, w)["error"])
}

func TestLoginAndCheckout(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect email or password", decode(t, w)["error"])

	w = do(r, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ann@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "tok", "token never leaves the process")

	do(r, http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": 1})

	w = do(r, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "delivery form is empty")

	do(r, http.MethodPut, "/api/v1/checkout/delivery", gin.H{"address": "Main st 1", "phone": "555"})
	w = do(r, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(42), decode(t, w)["order_id"])

	w = do(r, http.MethodGet, "/api/v1/state", nil)
	state := decode(t, w)
	assert.Empty(t, state["cart"].(map[string]any)["lines"])
	assert.Equal(t, "success", state["banner"].(map[string]any)["kind"])
}

func TestNavigation(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPut, "/api/v1/view", gin.H{"view": "profile"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPut, "/api/v1/view", gin.H{"view": "settings"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/view", gin.H{"view": "cart"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cart", decode(t, w)["view"])

	w = do(r, http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminReport(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/api/v1/admin/reports/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":12,"revenue":15000}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/admin/reports/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
