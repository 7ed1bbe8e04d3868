package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes keyed events to the activity topic
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
	Close() error
}

// ActivityPublisher mirrors storefront activity to Kafka. Publishing is
// fire-and-forget: callers never wait for the broker and failures are only
// logged. Events are written one at a time in the order they were published,
// so events sharing a key keep their order on the partition.
type ActivityPublisher struct {
	producer Publisher
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan activity
	done   chan struct{}
}

type activity struct {
	ctx       context.Context
	key       string
	eventType string
	event     interface{}
}

const activityQueueSize = 256

// NewActivityPublisher creates a new activity publisher and starts its
// writer goroutine
func NewActivityPublisher(producer Publisher) *ActivityPublisher {
	ap := &ActivityPublisher{
		producer: producer,
		timeout:  5 * time.Second,
		logger:   util.GetLogger(),
		queue:    make(chan activity, activityQueueSize),
		done:     make(chan struct{}),
	}
	go ap.run()
	return ap
}

// PublishCartEvent publishes a cart mutation
func (ap *ActivityPublisher) PublishCartEvent(ctx context.Context, event *models.CartEvent) {
	ap.publish(ctx, userKey(event.UserID), event.EventType, event)
}

// PublishCheckoutEvent publishes a settled checkout
func (ap *ActivityPublisher) PublishCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) {
	ap.publish(ctx, userKey(event.UserID), event.EventType, event)
}

// PublishSessionEvent publishes a session start or end
func (ap *ActivityPublisher) PublishSessionEvent(ctx context.Context, event *models.SessionEvent) {
	ap.publish(ctx, userKey(event.UserID), event.EventType, event)
}

// publish queues the event without blocking. A full queue or a closed
// publisher drops it.
func (ap *ActivityPublisher) publish(ctx context.Context, key, eventType string, event interface{}) {
	a := activity{ctx: context.WithoutCancel(ctx), key: key, eventType: eventType, event: event}

	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.closed {
		ap.drop(eventType, "publisher closed")
		return
	}
	select {
	case ap.queue <- a:
	default:
		ap.drop(eventType, "queue full")
	}
}

func (ap *ActivityPublisher) drop(eventType, reason string) {
	util.ActivityEventsTotal.WithLabelValues(eventType, "dropped").Inc()
	ap.logger.Warn("Dropping activity event",
		zap.String("type", eventType),
		zap.String("reason", reason))
}

func (ap *ActivityPublisher) run() {
	defer close(ap.done)
	for a := range ap.queue {
		ap.write(a)
	}
}

func (ap *ActivityPublisher) write(a activity) {
	ctx, cancel := context.WithTimeout(a.ctx, ap.timeout)
	defer cancel()

	if err := ap.producer.PublishEvent(ctx, a.key, a.event); err != nil {
		util.ActivityEventsTotal.WithLabelValues(a.eventType, "failed").Inc()
		ap.logger.Warn("Failed to publish activity event",
			zap.String("type", a.eventType),
			zap.Error(err))
		return
	}
	util.ActivityEventsTotal.WithLabelValues(a.eventType, "published").Inc()
}

// Close flushes queued events and closes the producer
func (ap *ActivityPublisher) Close() error {
	ap.mu.Lock()
	if !ap.closed {
		ap.closed = true
		close(ap.queue)
	}
	ap.mu.Unlock()

	<-ap.done
	return ap.producer.Close()
}

func userKey(userID int64) string {
	if userID == 0 {
		return "guest"
	}
	return fmt.Sprintf("user-%d", userID)
}

// EventHandler handles incoming activity events
type EventHandler struct {
	onCart     func(context.Context, *models.CartEvent) error
	onCheckout func(context.Context, *models.CheckoutEvent) error
	onSession  func(context.Context, *models.SessionEvent) error
	logger     *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnCart registers a handler for cart events
func (eh *EventHandler) OnCart(handler func(context.Context, *models.CartEvent) error) {
	eh.onCart = handler
}

// OnCheckout registers a handler for checkout events
func (eh *EventHandler) OnCheckout(handler func(context.Context, *models.CheckoutEvent) error) {
	eh.onCheckout = handler
}

// OnSession registers a handler for session events
func (eh *EventHandler) OnSession(handler func(context.Context, *models.SessionEvent) error) {
	eh.onSession = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCartItemAdded, models.EventTypeCartItemUpdated,
		models.EventTypeCartItemRemoved, models.EventTypeCartCleared:
		if eh.onCart != nil {
			var event models.CartEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal cart event: %w", err)
			}
			return eh.onCart(ctx, &event)
		}

	case models.EventTypeCheckoutSucceeded, models.EventTypeCheckoutFailed:
		if eh.onCheckout != nil {
			var event models.CheckoutEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal checkout event: %w", err)
			}
			return eh.onCheckout(ctx, &event)
		}

	case models.EventTypeSessionStarted, models.EventTypeSessionEnded:
		if eh.onSession != nil {
			var event models.SessionEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal session event: %w", err)
			}
			return eh.onSession(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
