package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestActivityPublisher(t *testing.T) {
	w := &recordingWriter{}
	ap := NewActivityPublisher(newProducer(w))

	ctx, cancel := context.WithCancel(context.Background())
	ap.PublishCartEvent(ctx, &models.CartEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeCartItemAdded, Timestamp: time.Now()},
		ProductID: 3,
		Quantity:  1,
	})
	ap.PublishSessionEvent(ctx, &models.SessionEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeSessionStarted},
		UserID:    4,
	})
	// request contexts end before the writer gets to the events
	cancel()

	require.NoError(t, ap.Close())
	assert.True(t, w.closed)

	require.Len(t, w.messages, 2)
	keys := []string{string(w.messages[0].Key), string(w.messages[1].Key)}
	assert.ElementsMatch(t, []string{"guest", "user-4"}, keys)
}

func TestActivityPublisherSwallowsFailures(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	ap := NewActivityPublisher(newProducer(w))

	ap.PublishCheckoutEvent(context.Background(), &models.CheckoutEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeCheckoutFailed},
		UserID:    4,
	})

	assert.NoError(t, ap.Close())
	assert.Empty(t, w.messages)
}

func TestActivityPublisherKeepsPublishOrder(t *testing.T) {
	w := &recordingWriter{}
	ap := NewActivityPublisher(newProducer(w))

	for qty := 1; qty <= 20; qty++ {
		ap.PublishCartEvent(context.Background(), &models.CartEvent{
			BaseEvent: models.BaseEvent{EventType: models.EventTypeCartItemAdded},
			UserID:    4,
			ProductID: 3,
			Quantity:  qty,
		})
	}
	require.NoError(t, ap.Close())

	require.Len(t, w.messages, 20)
	for i, msg := range w.messages {
		var e models.CartEvent
		require.NoError(t, json.Unmarshal(msg.Value, &e))
		assert.Equal(t, "user-4", string(msg.Key))
		assert.Equal(t, i+1, e.Quantity)
	}
}

func TestActivityPublisherDropsAfterClose(t *testing.T) {
	w := &recordingWriter{}
	ap := NewActivityPublisher(newProducer(w))
	require.NoError(t, ap.Close())

	assert.NotPanics(t, func() {
		ap.PublishSessionEvent(context.Background(), &models.SessionEvent{
			BaseEvent: models.BaseEvent{EventType: models.EventTypeSessionEnded},
			UserID:    4,
		})
	})
	assert.Empty(t, w.messages)
}

func TestEventHandlerRouting(t *testing.T) {
	eh := NewEventHandler()

	var cart *models.CartEvent
	var checkout *models.CheckoutEvent
	eh.OnCart(func(_ context.Context, e *models.CartEvent) error {
		cart = e
		return nil
	})
	eh.OnCheckout(func(_ context.Context, e *models.CheckoutEvent) error {
		checkout = e
		return nil
	})

	msg := func(v any) kafka.Message {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return kafka.Message{Value: b}
	}
	ctx := context.Background()

	require.NoError(t, eh.HandleMessage(ctx, msg(models.CartEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeCartCleared},
		Subtotal:  "0.00",
	})))
	require.NoError(t, eh.HandleMessage(ctx, msg(models.CheckoutEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeCheckoutSucceeded},
		OrderID:   42,
	})))
	// no session handler registered
	require.NoError(t, eh.HandleMessage(ctx, msg(models.SessionEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeSessionEnded},
	})))
	require.NoError(t, eh.HandleMessage(ctx, msg(models.BaseEvent{EventType: "SOMETHING_ELSE"})))

	require.NotNil(t, cart)
	assert.Equal(t, "0.00", cart.Subtotal)
	require.NotNil(t, checkout)
	assert.Equal(t, int64(42), checkout.OrderID)

	assert.Error(t, eh.HandleMessage(ctx, kafka.Message{Value: []byte("not json")}))
}

func TestKafkaIntegration(t *testing.T) {
	t.Skip("Integration test - requires a Kafka broker")

	p := NewProducer([]string{"localhost:9092"}, "storefront-activity-test")
	defer p.Close()

	err := p.PublishEvent(context.Background(), "guest", models.BaseEvent{EventType: models.EventTypeCartCleared})
	assert.NoError(t, err)
}
