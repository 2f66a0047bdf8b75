package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/shoe-shop/internal/service"
	generalDomain "github.com/sakashimaa/shoe-shop/pkg/domain"
	"github.com/sakashimaa/shoe-shop/pkg/kafka"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/shoe-shop/pkg/outbox/domain"
	"go.uber.org/zap"
)

// Deduplicator runs action at most once per event id.
type Deduplicator func(ctx context.Context, eventID int64, action func(ctx context.Context) error) error

type Consumer struct {
	users    service.UserService
	orders   service.OrderService
	products service.ProductService
	dedup    Deduplicator
	logger   *zap.Logger
}

func NewConsumer(
	users service.UserService,
	orders service.OrderService,
	products service.ProductService,
	dedup Deduplicator,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		users:    users,
		orders:   orders,
		products: products,
		dedup:    dedup,
		logger:   logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{
			generalDomain.TopicUserEvents,
			generalDomain.TopicPaymentEvents,
			generalDomain.TopicOrderEvents,
		},
		c.processMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	var wrapper outboxDomain.Envelope
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		// Malformed messages are dropped and committed.
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return nil
	}

	switch wrapper.Event {
	case generalDomain.EventUserRegistered:
		var event generalDomain.UserRegisteredEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal event", zap.Error(err))
			return nil
		}

		return c.swallowRejected(ctx, wrapper.Event, c.users.HandleUserRegistered(ctx, &event))
	case generalDomain.EventPaymentSucceeded:
		var event generalDomain.PaymentSucceededEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal payload", zap.Error(err))
			return nil
		}

		return c.dedup(ctx, event.EventID, func(ctx context.Context) error {
			return c.swallowRejected(ctx, wrapper.Event, c.orders.HandlePaymentSucceeded(ctx, &event))
		})
	case generalDomain.EventPaymentFailed:
		var event generalDomain.PaymentFailedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal payload", zap.Error(err))
			return nil
		}

		return c.dedup(ctx, event.EventID, func(ctx context.Context) error {
			return c.swallowRejected(ctx, wrapper.Event, c.orders.HandlePaymentFailed(ctx, &event))
		})
	case generalDomain.EventOrderCreated:
		var event generalDomain.OrderCreatedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal payload", zap.Error(err))
			return nil
		}

		ids := make([]int64, 0, len(event.Items))
		for _, item := range event.Items {
			ids = append(ids, item.ProductID)
		}

		if err := c.products.Evict(ctx, ids...); err != nil {
			return fmt.Errorf("evict products of order %d: %w", event.OrderID, err)
		}
	default:
		mylogger.Debug(ctx, c.logger, "Ignored event type", zap.String("event_type", wrapper.Event))
	}

	return nil
}

// swallowRejected drops errors the service raised on purpose: retrying a
// rejected transition or an unknown order cannot succeed.
func (c *Consumer) swallowRejected(ctx context.Context, event string, err error) error {
	if err == nil {
		return nil
	}

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		mylogger.Warn(
			ctx,
			c.logger,
			"Event rejected",
			zap.String("event_type", event),
			zap.String("reason", svcErr.Message),
		)

		return nil
	}

	mylogger.Error(ctx, c.logger, "Failed to handle event", zap.String("event_type", event), zap.Error(err))
	return err
}
