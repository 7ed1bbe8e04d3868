package cart

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Reconcile pushes the local cart to the server cart after a session
// begins. For each local line the units the server is missing are added one
// by one. Server-only rows are left alone. Failures are logged and the
// number of units pushed is returned.
func (e *Engine) Reconcile(ctx context.Context) int {
	ctx, span := util.StartSpan(ctx, "CartEngine.Reconcile")
	defer span.End()

	if e.sessions.Current() == nil {
		return 0
	}

	lines := e.Lines()
	if len(lines) == 0 {
		return 0
	}

	rows, err := e.backend.GetCart(ctx)
	if err != nil {
		e.mirrorFailed("reconcile", 0, err)
		return 0
	}

	pushed := 0
	for productID, missing := range missingUnits(lines, rows) {
		for i := 0; i < missing; i++ {
			// The session may end while we are pushing
			if e.sessions.Current() == nil {
				return pushed
			}
			if err := e.backend.AddToCart(ctx, productID); err != nil {
				e.mirrorFailed("reconcile", productID, err)
				break
			}
			pushed++
		}
	}

	if pushed > 0 {
		e.logger.Info("Server cart reconciled", zap.Int("units_pushed", pushed))
	}
	return pushed
}

func missingUnits(lines []models.CartLine, rows []models.ServerCartItem) map[int64]int {
	remote := make(map[int64]int, len(rows))
	for _, r := range rows {
		qty := r.Quantity
		if qty <= 0 {
			qty = 1
		}
		remote[r.ItemID] += qty
	}

	out := make(map[int64]int)
	for _, l := range lines {
		if n := l.Quantity - remote[l.ProductID]; n > 0 {
			out[l.ProductID] = n
		}
	}
	return out
}
