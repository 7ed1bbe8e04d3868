package cart

import (
	"context"
	"slices"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is the part of the API client used by the cart: the server-side
// cart mirror and order submission
type Backend interface {
	AddToCart(ctx context.Context, itemID int64) error
	GetCart(ctx context.Context) ([]models.ServerCartItem, error)
	RemoveFromCart(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context) error
	CreateOrder(ctx context.Context, order *models.Order, idempotencyKey string) (*models.OrderReceipt, error)
}

// SessionSource reports the active session, nil for a guest
type SessionSource interface {
	Current() *models.Session
}

// EventSink receives cart and checkout activity events
type EventSink interface {
	PublishCartEvent(ctx context.Context, event *models.CartEvent)
	PublishCheckoutEvent(ctx context.Context, event *models.CheckoutEvent)
}

// State of the checkout state machine
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
)

// Snapshot is the canonical cart state returned by every operation.
// Removing lists the products whose server-side removal is still in flight,
// so views can disable their remove control.
type Snapshot struct {
	Lines    []models.CartLine `json:"lines"`
	Totals   models.Totals     `json:"totals"`
	State    State             `json:"state"`
	Removing []int64           `json:"removing,omitempty"`
}

// Engine owns the cart lines. Local state is authoritative; the server cart
// is a best-effort mirror written after the local change is applied.
type Engine struct {
	backend  Backend
	sessions SessionSource
	persist  *store.Persistent
	pricing  Pricing
	events   EventSink
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	lines    []models.CartLine
	state    State
	removing map[int64]bool
}

// NewEngine creates an empty cart engine
func NewEngine(backend Backend, sessions SessionSource, persist *store.Persistent, pricing Pricing) *Engine {
	return &Engine{
		backend:  backend,
		sessions: sessions,
		persist:  persist,
		pricing:  pricing,
		logger:   util.GetLogger(),
		now:      time.Now,
		state:    StateIdle,
		removing: make(map[int64]bool),
	}
}

// WithEvents sets the activity event sink
func (e *Engine) WithEvents(sink EventSink) *Engine {
	e.events = sink
	return e
}

// Load replaces the in-memory lines with the persisted cart. Lines that
// violate the cart invariants are dropped or merged.
func (e *Engine) Load(ctx context.Context) Snapshot {
	var saved []models.CartLine
	if !e.persist.Load(ctx, store.KeyCart, &saved) {
		saved = nil
	}

	lines := make([]models.CartLine, 0, len(saved))
	index := make(map[int64]int, len(saved))
	for _, l := range saved {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(lines)
		lines = append(lines, l)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = lines
	return e.snapshotLocked()
}

// Snapshot returns the current lines with freshly computed totals
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Lines returns a copy of the cart lines
func (e *Engine) Lines() []models.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.CartLine(nil), e.lines...)
}

// Totals computes the derived values from the current lines
func (e *Engine) Totals() models.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pricing.Compute(e.lines)
}

// AddItem increments the line of product, creating it with quantity 1
func (e *Engine) AddItem(ctx context.Context, product models.Product) Snapshot {
	e.mu.Lock()
	qty := 1
	if i := e.indexLocked(product.ID); i >= 0 {
		e.lines[i].Quantity++
		qty = e.lines[i].Quantity
	} else {
		e.lines = append(e.lines, models.CartLine{
			ProductID: product.ID,
			Name:      product.DisplayName(),
			UnitPrice: product.Price,
			Quantity:  1,
		})
	}
	snap := e.commitLocked(ctx, "add")
	e.mu.Unlock()

	e.publishCart(ctx, models.EventTypeCartItemAdded, product.ID, qty, snap)

	if e.sessions.Current() != nil {
		if err := e.backend.AddToCart(ctx, product.ID); err != nil {
			e.mirrorFailed("add", product.ID, err)
		}
	}
	return snap
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line; an unknown product is a no-op.
func (e *Engine) UpdateQuantity(ctx context.Context, productID int64, quantity int) Snapshot {
	if quantity <= 0 {
		return e.RemoveItem(ctx, productID)
	}

	e.mu.Lock()
	i := e.indexLocked(productID)
	if i < 0 {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}
	e.lines[i].Quantity = quantity
	snap := e.commitLocked(ctx, "update")
	e.mu.Unlock()

	e.publishCart(ctx, models.EventTypeCartItemUpdated, productID, quantity, snap)
	return snap
}

// RemoveItem deletes the line of productID if present. With a session the
// removal is mirrored to the server cart; a failure there is logged only.
func (e *Engine) RemoveItem(ctx context.Context, productID int64) Snapshot {
	e.mu.Lock()
	i := e.indexLocked(productID)
	if i < 0 {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)

	mirror := e.sessions.Current() != nil && !e.removing[productID]
	if mirror {
		e.removing[productID] = true
	}
	snap := e.commitLocked(ctx, "remove")
	e.mu.Unlock()

	e.publishCart(ctx, models.EventTypeCartItemRemoved, productID, 0, snap)

	if mirror {
		err := e.backend.RemoveFromCart(ctx, productID)

		e.mu.Lock()
		delete(e.removing, productID)
		e.mu.Unlock()

		if err != nil {
			e.mirrorFailed("remove", productID, err)
		}
		return e.Snapshot()
	}
	return snap
}

// RemovalInFlight reports whether a server-side removal of productID is pending
func (e *Engine) RemovalInFlight(productID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removing[productID]
}

// Clear empties the cart. With a session the server cart is cleared too.
func (e *Engine) Clear(ctx context.Context) Snapshot {
	e.mu.Lock()
	e.lines = nil
	snap := e.commitLocked(ctx, "clear")
	e.mu.Unlock()

	e.publishCart(ctx, models.EventTypeCartCleared, 0, 0, snap)
	e.mirrorClear(ctx)
	return snap
}

func (e *Engine) mirrorClear(ctx context.Context) {
	if e.sessions.Current() == nil {
		return
	}
	if err := e.backend.ClearCart(ctx); err != nil {
		e.mirrorFailed("clear", 0, err)
	}
}

// State returns the checkout state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) indexLocked(productID int64) int {
	for i, l := range e.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (e *Engine) snapshotLocked() Snapshot {
	var removing []int64
	for id := range e.removing {
		removing = append(removing, id)
	}
	slices.Sort(removing)

	return Snapshot{
		Lines:    append([]models.CartLine{}, e.lines...),
		Totals:   e.pricing.Compute(e.lines),
		State:    e.state,
		Removing: removing,
	}
}

// commitLocked persists the lines and returns the new snapshot. A failed
// write is logged; the in-memory cart stays authoritative.
func (e *Engine) commitLocked(ctx context.Context, op string) Snapshot {
	util.CartMutationsTotal.WithLabelValues(op).Inc()

	lines := e.lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	if err := e.persist.Save(ctx, store.KeyCart, lines); err != nil {
		e.logger.Error("Failed to persist cart", zap.String("op", op), zap.Error(err))
	}
	return e.snapshotLocked()
}

func (e *Engine) mirrorFailed(op string, productID int64, err error) {
	util.ServerCartMirrorFailed.WithLabelValues(op).Inc()
	e.logger.Warn("Server cart mirror failed",
		zap.String("op", op),
		zap.Int64("product_id", productID),
		zap.Error(err))
}

func (e *Engine) publishCart(ctx context.Context, eventType string, productID int64, qty int, snap Snapshot) {
	if e.events == nil {
		return
	}
	var userID int64
	if sess := e.sessions.Current(); sess != nil {
		userID = sess.User.ID
	}
	e.events.PublishCartEvent(ctx, &models.CartEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: e.now(),
		},
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		ItemCount: snap.Totals.ItemCount,
		Subtotal:  snap.Totals.Subtotal.StringFixed(2),
	})
}
