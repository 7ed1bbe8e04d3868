package cart

import (
	"context"
	"strings"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const genericCheckoutFailure = "Could not place the order. Please try again."

// Checkout submits the cart as an order. Preconditions are checked before
// any request: an active session, both delivery fields and a non-empty
// cart. The ordered quantities are taken out of the cart only after the
// backend confirmed the order.
func (e *Engine) Checkout(ctx context.Context, info models.DeliveryInfo) (*models.OrderReceipt, error) {
	ctx, span := util.StartSpan(ctx, "CartEngine.Checkout")
	defer span.End()

	sess := e.sessions.Current()
	if sess == nil {
		return nil, &ValidationError{Reason: "Please log in before placing an order"}
	}

	info.Address = strings.TrimSpace(info.Address)
	info.Phone = strings.TrimSpace(info.Phone)
	if info.Address == "" || info.Phone == "" {
		return nil, &ValidationError{Reason: "Please fill in the delivery address and phone"}
	}

	e.mu.Lock()
	if e.state == StateSubmitting {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if len(e.lines) == 0 {
		e.mu.Unlock()
		return nil, &ValidationError{Reason: "Your cart is empty"}
	}
	submitted := append([]models.CartLine(nil), e.lines...)
	order := buildOrder(submitted, e.pricing.Compute(submitted), info)
	e.state = StateSubmitting
	e.mu.Unlock()

	key := uuid.New().String()
	util.CheckoutAttemptsTotal.Inc()
	start := time.Now()

	receipt, err := e.backend.CreateOrder(ctx, order.Order, key)
	util.CheckoutLatency.Observe(time.Since(start).Seconds())
	if err == nil && receipt == nil {
		receipt = &models.OrderReceipt{}
	}

	if err != nil {
		e.mu.Lock()
		e.state = StateIdle
		e.mu.Unlock()

		util.CheckoutOutcomesTotal.WithLabelValues("failed").Inc()
		msg := apiclient.DetailOr(err, genericCheckoutFailure)
		e.logger.Error("Checkout failed",
			zap.Int64("user_id", sess.User.ID),
			zap.String("idempotency_key", key),
			zap.Error(err))
		e.publishCheckout(ctx, models.EventTypeCheckoutFailed, sess.User.ID, order, key, 0, msg)

		return nil, &CheckoutFailedError{Message: msg, Err: err}
	}

	e.mu.Lock()
	e.state = StateIdle
	e.settleLocked(submitted)
	snap := e.commitLocked(ctx, "checkout")
	e.mu.Unlock()

	util.CheckoutOutcomesTotal.WithLabelValues("success").Inc()
	e.logger.Info("Order placed",
		zap.Int64("order_id", receipt.OrderID),
		zap.Int64("user_id", sess.User.ID),
		zap.String("total", order.totalString))
	e.publishCheckout(ctx, models.EventTypeCheckoutSucceeded, sess.User.ID, order, key, receipt.OrderID, "")

	if len(snap.Lines) == 0 {
		e.mirrorClear(ctx)
	}
	return receipt, nil
}

// settleLocked takes the submitted quantities out of the cart. Lines added
// while the order was in flight survive.
func (e *Engine) settleLocked(submitted []models.CartLine) {
	ordered := make(map[int64]int, len(submitted))
	for _, l := range submitted {
		ordered[l.ProductID] = l.Quantity
	}

	kept := e.lines[:0]
	for _, l := range e.lines {
		l.Quantity -= ordered[l.ProductID]
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	e.lines = kept
}

type pendingOrder struct {
	*models.Order
	totalString string
}

func buildOrder(lines []models.CartLine, totals models.Totals, info models.DeliveryInfo) pendingOrder {
	items := make([]models.OrderLine, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderLine{
			ItemID:   l.ProductID,
			Quantity: l.Quantity,
			Price:    l.UnitPrice.InexactFloat64(),
		})
	}
	return pendingOrder{
		Order: &models.Order{
			Items:           items,
			TotalPrice:      totals.Total.InexactFloat64(),
			DeliveryAddress: info.Address,
			DeliveryPhone:   info.Phone,
			Status:          models.OrderStatusPending,
		},
		totalString: totals.Total.StringFixed(2),
	}
}

func (e *Engine) publishCheckout(ctx context.Context, eventType string, userID int64, order pendingOrder, key string, orderID int64, reason string) {
	if e.events == nil {
		return
	}
	e.events.PublishCheckoutEvent(ctx, &models.CheckoutEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: e.now(),
		},
		UserID:         userID,
		OrderID:        orderID,
		Total:          order.totalString,
		Lines:          len(order.Items),
		IdempotencyKey: key,
		Reason:         reason,
	})
}
