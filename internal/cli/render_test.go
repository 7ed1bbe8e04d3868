package cli

import (
	"bytes"
	"io"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/models"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRenderCart(t *testing.T) {
	lines := []models.CartLine{
		{ProductID: 1, Name: "Ultra Thin Laptop Pro Max 16 inch", UnitPrice: price("1000"), Quantity: 1},
		{ProductID: 5, Name: "Wireless Mouse", UnitPrice: price("50"), Quantity: 2},
	}
	snap := cart.Snapshot{
		Lines:  lines,
		Totals: cart.DefaultPricing().Compute(lines),
		State:  cart.StateIdle,
	}

	var buf bytes.Buffer
	require.NoError(t, renderCart(&buf, snap))
	golden(t).Assert(t, "cart", buf.Bytes())
}

func TestRenderEmptyCart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderCart(&buf, cart.Snapshot{}))
	assert.Equal(t, "Your cart is empty\n", buf.String())
}

func TestRenderCatalog(t *testing.T) {
	view := catalog.View{
		Mode:  catalog.ModeOfflineDemo,
		Error: "Failed to load products: backend unreachable",
		Categories: []models.Category{
			{ID: 1, Name: "Laptops"},
			{ID: 2, Name: "Mice"},
		},
		Products: []models.Product{
			{ID: 1, Name: "Gaming Laptop", Price: price("1299.99")},
			{ID: 4, Title: "Keyboard K2", Price: price("89.5")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderCatalog(&buf, view))
	golden(t).Assert(t, "catalog_offline", buf.Bytes())

	buf.Reset()
	require.NoError(t, renderCatalog(&buf, catalog.View{Mode: catalog.ModeLive}))
	assert.Equal(t, "Mode: LIVE\n\nNo products match\n", buf.String())
}

func TestRenderOrders(t *testing.T) {
	orders := []models.OrderRecord{
		{ID: 42, Status: models.OrderStatusPending, TotalPrice: price("1220"), DeliveryAddress: "1 Main St"},
		{ID: 7, Status: models.OrderStatusDelivered, TotalPrice: price("65.5"), DeliveryAddress: "2 Side Rd"},
	}

	var buf bytes.Buffer
	require.NoError(t, renderOrders(&buf, orders))
	golden(t).Assert(t, "orders", buf.Bytes())

	buf.Reset()
	require.NoError(t, renderOrders(&buf, nil))
	assert.Equal(t, "No orders yet\n", buf.String())
}

func TestRenderOrder(t *testing.T) {
	order := &models.OrderRecord{
		ID:              42,
		Status:          models.OrderStatusPending,
		TotalPrice:      price("1220"),
		DeliveryAddress: "1 Main St",
		DeliveryPhone:   "555-0100",
		Items: []models.OrderItem{
			{ItemID: 1, Quantity: 1, Price: price("1000")},
			{ItemID: 5, Quantity: 2, Price: price("50")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderOrder(&buf, order))
	golden(t).Assert(t, "order_detail", buf.Bytes())
}

func TestRenderReceipt(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderReceipt(&buf, &models.OrderReceipt{Message: "Order created", OrderID: 42, Status: "pending"}))
	assert.Equal(t, "Order #42 placed (pending)\nOrder created\n", buf.String())

	buf.Reset()
	require.NoError(t, renderReceipt(&buf, &models.OrderReceipt{}))
	assert.Equal(t, "Order placed\n", buf.String())
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	err := emit(&buf, "json", &models.OrderReceipt{OrderID: 42, Status: "pending"}, func(io.Writer) error {
		t.Fatal("text renderer called in json mode")
		return nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"","order_id":42,"status":"pending"}`, buf.String())
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, models.Report(`{"total_items":3}`)))
	assert.Equal(t, "{\n  \"total_items\": 3\n}\n", buf.String())

	assert.Error(t, renderReport(&buf, models.Report(`{`)))
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--format", "xml", "logout"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
