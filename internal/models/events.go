package models

import "time"

// Activity event types
const (
	EventTypeCartItemAdded     = "CART_ITEM_ADDED"
	EventTypeCartItemUpdated   = "CART_ITEM_UPDATED"
	EventTypeCartItemRemoved   = "CART_ITEM_REMOVED"
	EventTypeCartCleared       = "CART_CLEARED"
	EventTypeCheckoutSucceeded = "CHECKOUT_SUCCEEDED"
	EventTypeCheckoutFailed    = "CHECKOUT_FAILED"
	EventTypeSessionStarted    = "SESSION_STARTED"
	EventTypeSessionEnded      = "SESSION_ENDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartEvent is published for every local cart mutation
type CartEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
	ItemCount int    `json:"item_count"`
	Subtotal  string `json:"subtotal"`
}

// CheckoutEvent is published when a checkout attempt settles
type CheckoutEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	OrderID        int64  `json:"order_id,omitempty"`
	Total          string `json:"total"`
	Lines          int    `json:"lines"`
	IdempotencyKey string `json:"idempotency_key"`
	Reason         string `json:"reason,omitempty"`
}

// SessionEvent is published when a session begins or ends
type SessionEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}
