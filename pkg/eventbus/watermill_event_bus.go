package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/contentflow/pkg/events"
)

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler

	consumers sync.WaitGroup
	cancelMu  sync.Mutex
	cancels   []context.CancelFunc
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("module", "event-bus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish sends event to its topic. key is used for partitioning; the
// workflow ID keeps every message of one workflow in order.
func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.TopicFor(event.GetType()), msg)
}

// Subscribe starts one consumer goroutine per topic with registered handlers.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	eb.mu.RLock()

	topics := make(map[string]struct{})
	for eventType := range eb.subscriptions {
		topics[events.TopicFor(eventType)] = struct{}{}
	}

	eb.mu.RUnlock()

	if len(topics) == 0 {
		eb.logger.WarnContext(ctx, "No handlers registered, nothing to subscribe to")

		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	eb.cancelMu.Lock()
	eb.cancels = append(eb.cancels, cancel)
	eb.cancelMu.Unlock()

	for topic := range topics {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		eb.logger.InfoContext(ctx, "Subscribed", "topic", topic)

		eb.consumers.Add(1)

		go func() {
			defer eb.consumers.Done()

			eb.consume(ctx, messages)
		}()
	}

	return nil
}

// Drain ends every subscription and waits for in-flight handlers to return.
// The publisher stays open, so handlers' side effects can still publish.
func (eb *WatermillEventBus) Drain() {
	eb.cancelMu.Lock()
	for _, cancel := range eb.cancels {
		cancel()
	}
	eb.cancels = nil
	eb.cancelMu.Unlock()

	eb.consumers.Wait()
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		eb.mu.RLock()
		handler, exists := eb.subscriptions[eventType]
		eb.mu.RUnlock()

		if !exists {
			msg.Ack()

			continue
		}

		event, err := decode(eventType, msg.Payload)
		if err != nil {
			// Malformed messages would fail again on redelivery.
			eb.logger.ErrorContext(ctx, "Discarding undecodable message",
				"message_id", msg.UUID,
				"event_type", eventType,
				"error", err)
			msg.Ack()

			continue
		}

		err = handler(msg.Context(), event)
		if err != nil {
			eb.logger.WarnContext(ctx, "Handler failed, message will be redelivered",
				"message_id", msg.UUID,
				"event_type", eventType,
				"error", err)
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func decode(eventType events.EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case events.StageCompletedEvent:
		if err := events.ValidateStageCompleted(payload); err != nil {
			return nil, err
		}

		event = &events.StageCompleted{}
	case events.WorkflowTransitionedEvent:
		event = &events.WorkflowTransitioned{}
	default:
		return nil, fmt.Errorf("unsupported event type %q", eventType)
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}

	return event, nil
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	eb.Drain()

	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
