package app

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/session"

	"go.uber.org/zap"
)

// Login starts a session and reports the outcome in a banner
func (a *App) Login(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	sess, err := a.sessions.Login(ctx, creds)
	if err != nil {
		a.flash(BannerError, userMessage(err, "Login failed"))
		return nil, err
	}
	a.flash(BannerSuccess, fmt.Sprintf("Welcome, %s", sess.User.Email))
	return sess, nil
}

// Register creates an account and logs in with it
func (a *App) Register(ctx context.Context, profile models.RegisterRequest) (*models.Session, error) {
	sess, err := a.sessions.Register(ctx, profile)
	if err != nil {
		a.flash(BannerError, userMessage(err, "Registration failed"))
		return nil, err
	}
	a.flash(BannerSuccess, "Registration successful")
	return sess, nil
}

// Logout ends the session; navigation resets to the catalog
func (a *App) Logout(ctx context.Context) {
	a.sessions.Logout(ctx)
}

// AddToCart adds one unit of a catalog product
func (a *App) AddToCart(ctx context.Context, productID int64) (cart.Snapshot, error) {
	p, err := a.catalog.Product(ctx, productID)
	if err != nil {
		return a.cart.Snapshot(), err
	}
	snap := a.cart.AddItem(ctx, p)
	a.flash(BannerSuccess, fmt.Sprintf("%s added to cart", p.DisplayName()))
	return snap, nil
}

// UpdateQuantity sets a line quantity; zero or less removes the line
func (a *App) UpdateQuantity(ctx context.Context, productID int64, quantity int) cart.Snapshot {
	return a.cart.UpdateQuantity(ctx, productID, quantity)
}

// RemoveFromCart deletes a line
func (a *App) RemoveFromCart(ctx context.Context, productID int64) cart.Snapshot {
	return a.cart.RemoveItem(ctx, productID)
}

// ClearCart empties the cart
func (a *App) ClearCart(ctx context.Context) cart.Snapshot {
	return a.cart.Clear(ctx)
}

// Checkout submits the cart with the current delivery form. The form is
// cleared only when the order was accepted.
func (a *App) Checkout(ctx context.Context) (*models.OrderReceipt, error) {
	receipt, err := a.cart.Checkout(ctx, a.Delivery())
	if err != nil {
		if !errors.Is(err, apiclient.ErrAuthExpired) {
			a.flash(BannerError, userMessage(err, "Checkout failed"))
		}
		return nil, err
	}

	a.mu.Lock()
	a.delivery = models.DeliveryInfo{}
	a.flashLocked(BannerSuccess, "Order placed. Thank you for your purchase!")
	a.mu.Unlock()

	a.logger.Info("Checkout completed", zap.Int64("order_id", receipt.OrderID))
	return receipt, nil
}

// userMessage picks the text shown to the user for err
func userMessage(err error, fallback string) string {
	var cartErr *cart.ValidationError
	var sessErr *session.ValidationError
	var failed *cart.CheckoutFailedError
	switch {
	case errors.As(err, &cartErr):
		return cartErr.Reason
	case errors.As(err, &sessErr):
		return sessErr.Reason
	case errors.As(err, &failed):
		return failed.Message
	case errors.Is(err, cart.ErrCheckoutInProgress):
		return "Your order is already being processed"
	default:
		return apiclient.DetailOr(err, fallback)
	}
}
