package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource is the consuming side of the activity topic
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ActivityWorker tails the activity topic and writes one line per event
type ActivityWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewActivityWorker creates a new activity worker writing to out
func NewActivityWorker(consumer MessageSource, out io.Writer) *ActivityWorker {
	w := &ActivityWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
		out:          out,
	}

	w.eventHandler.OnCart(w.handleCart)
	w.eventHandler.OnCheckout(w.handleCheckout)
	w.eventHandler.OnSession(w.handleSession)
	return w
}

// Start consumes until ctx is cancelled
func (w *ActivityWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting activity worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *ActivityWorker) Stop() error {
	w.logger.Info("Stopping activity worker")
	return w.consumer.Close()
}

// HandleMessage decodes and prints a single activity message
func (w *ActivityWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *ActivityWorker) handleCart(_ context.Context, e *models.CartEvent) error {
	return w.printf(e.BaseEvent, "user=%s product=%d qty=%d items=%d subtotal=%s",
		user(e.UserID), e.ProductID, e.Quantity, e.ItemCount, e.Subtotal)
}

func (w *ActivityWorker) handleCheckout(_ context.Context, e *models.CheckoutEvent) error {
	if e.EventType == models.EventTypeCheckoutFailed {
		return w.printf(e.BaseEvent, "user=%s total=%s lines=%d reason=%q",
			user(e.UserID), e.Total, e.Lines, e.Reason)
	}
	return w.printf(e.BaseEvent, "user=%s order=%d total=%s lines=%d",
		user(e.UserID), e.OrderID, e.Total, e.Lines)
}

func (w *ActivityWorker) handleSession(_ context.Context, e *models.SessionEvent) error {
	return w.printf(e.BaseEvent, "user=%s email=%s reason=%s",
		user(e.UserID), e.Email, e.Reason)
}

func (w *ActivityWorker) printf(base models.BaseEvent, format string, args ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := fmt.Sprintf("%s %-18s ", base.Timestamp.UTC().Format(time.RFC3339), base.EventType)
	if _, err := fmt.Fprintf(w.out, prefix+format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write activity line: %w", err)
	}
	return nil
}

func user(id int64) string {
	if id == 0 {
		return "guest"
	}
	return fmt.Sprintf("%d", id)
}
