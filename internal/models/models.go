package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item as returned by the backend
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Specs       string          `json:"specs,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id,omitempty"`
	Stock       int             `json:"stock_quantity,omitempty"`
}

// DisplayName returns the product name, whichever field the backend filled.
func (p Product) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Title
}

// Validate narrows a decoded product before it is trusted.
func (p Product) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("invalid product id %d", p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %d has negative price", p.ID)
	}
	if strings.TrimSpace(p.DisplayName()) == "" {
		return fmt.Errorf("product %d has no name", p.ID)
	}
	return nil
}

// ItemInput is the admin create/update payload for /items/
type ItemInput struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id" validate:"required"`
}

// Category groups catalog items
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CategoryInput is the payload for creating a category
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

// CartLine is one product entry in the local cart
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ServerCartItem is a row of the server-side cart
type ServerCartItem struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// Totals are derived from the cart lines on every read
type Totals struct {
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

// User is the persisted public part of a session
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Session is the authenticated identity plus bearer token
type Session struct {
	User  User   `json:"user"`
	Token string `json:"-"`
}

// Credentials are the login form fields
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the registration profile
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name"`
}

// LoginResponse is returned by POST /auth/login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
}

// DeliveryInfo holds the checkout delivery form
type DeliveryInfo struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// IsEmpty reports whether both delivery fields are blank
func (d DeliveryInfo) IsEmpty() bool {
	return strings.TrimSpace(d.Address) == "" && strings.TrimSpace(d.Phone) == ""
}

// OrderStatusPending is the status of every newly submitted order
const OrderStatusPending = "pending"

// Order statuses reported by order history
const (
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderLine is one line of an order submission
type OrderLine struct {
	ItemID   int64   `json:"item_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is the submission-only projection built at checkout
type Order struct {
	Items           []OrderLine `json:"items"`
	TotalPrice      float64     `json:"total_price"`
	DeliveryAddress string      `json:"delivery_address"`
	DeliveryPhone   string      `json:"delivery_phone"`
	Status          string      `json:"status"`
}

// OrderReceipt is the backend response to a successful order submission
type OrderReceipt struct {
	Message string `json:"message"`
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// OrderRecord is an order as listed in the history
type OrderRecord struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryPhone   string          `json:"delivery_phone"`
	Status          string          `json:"status"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem is a purchased line as read back from the backend
type OrderItem struct {
	ItemID   int64           `json:"item_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Validate narrows an order record decoded from history responses
func (o OrderRecord) Validate() error {
	if o.ID <= 0 {
		return errors.New("order without id")
	}
	return nil
}

// Report is a read-only admin reporting document, kept as raw JSON since
// its shape is owned by the backend
type Report = json.RawMessage
