package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/metrics"
	"github.com/sakashimaa/shoe-shop/internal/repository"
	"github.com/sakashimaa/shoe-shop/pkg/db"
	generalDomain "github.com/sakashimaa/shoe-shop/pkg/domain"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/shoe-shop/pkg/outbox/domain"
	"github.com/sakashimaa/shoe-shop/pkg/outbox/worker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const orderAggregate = "order"

type OrderService interface {
	CreateOrder(ctx context.Context, user *domain.User, shipping domain.ShippingDetails) (*domain.Order, error)
	GetOrder(ctx context.Context, user *domain.User, orderID int64) (*domain.Order, error)
	GetUserOrders(ctx context.Context, user *domain.User) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*domain.Order, error)
	UpdateTrackingNumber(ctx context.Context, orderID int64, trackingNumber string) (*domain.Order, error)
	MarkShipped(ctx context.Context, orderID int64) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID int64) (*domain.Order, error)
	GetOrderStatistics(ctx context.Context, timeframe string) (*domain.OrderStatistics, error)
	HandlePaymentSucceeded(ctx context.Context, event *generalDomain.PaymentSucceededEvent) error
	HandlePaymentFailed(ctx context.Context, event *generalDomain.PaymentFailedEvent) error
}

type orderService struct {
	pool        *pgxpool.Pool
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	outboxRepo  worker.OutboxRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewOrderService(
	pool *pgxpool.Pool,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	outboxRepo worker.OutboxRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		pool:        pool,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		metrics:     m,
		logger:      logger,
		tracer:      otel.Tracer("order_service"),
		now:         time.Now,
	}
}

// CreateOrder turns the user's open cart into a PENDING order. Stock, the new
// order, the bound cart rows and the OrderCreated event are committed together
// or not at all.
func (s *orderService) CreateOrder(ctx context.Context, user *domain.User, shipping domain.ShippingDetails) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", user.ID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return nil, err
	}
	defer db.Rollback(ctx, tx, s.logger, "CreateOrder")

	items, err := s.cartRepo.ListOpenItemsForUpdate(ctx, tx, user.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(items) == 0 {
		return nil, invalidRequest("Cart is empty. Cannot create order.")
	}

	for _, item := range items {
		if item.Stock < item.Quantity {
			mylogger.Warn(
				ctx,
				s.logger,
				"Not enough stock for order",
				zap.Int64("user_id", user.ID),
				zap.Int64("product_id", item.ProductID),
				zap.Int32("stock", item.Stock),
				zap.Int32("quantity", item.Quantity),
			)

			return nil, invalidRequest("Not enough stock for %s", item.ProductName)
		}
	}

	total := decimal.Zero
	eventItems := make([]generalDomain.OrderCreatedItem, 0, len(items))
	for _, item := range items {
		if err := s.productRepo.DecreaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, invalidRequest("Not enough stock for %s", item.ProductName)
			}

			span.RecordError(err)
			return nil, err
		}

		total = total.Add(item.Price.Mul(decimal.NewFromInt32(item.Quantity)))
		eventItems = append(eventItems, generalDomain.OrderCreatedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	order := &domain.Order{
		UserID:          user.ID,
		Username:        user.Username,
		OrderDate:       s.now().Truncate(time.Microsecond),
		TotalAmount:     total,
		Status:          domain.OrderStatusPending,
		ShippingDetails: shipping,
	}

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	order.Items = make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if err := s.cartRepo.BindToOrder(ctx, tx, item.ID, order.ID, item.Price); err != nil {
			span.RecordError(err)
			return nil, err
		}

		orderItem := domain.OrderItem{
			ID:          item.ID,
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Brand:       item.Brand,
			Size:        item.Size,
			Color:       item.Color,
			ImageURL:    item.ImageURL,
			UnitPrice:   item.Price,
			Quantity:    item.Quantity,
		}
		orderItem.CalculateTotal()
		order.Items = append(order.Items, orderItem)
	}
	slices.SortFunc(order.Items, func(a, b domain.OrderItem) int {
		return cmp.Compare(a.ID, b.ID)
	})

	event, err := outboxDomain.NewEvent(
		orderAggregate,
		strconv.FormatInt(order.ID, 10),
		generalDomain.EventOrderCreated,
		generalDomain.TopicOrderEvents,
		generalDomain.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      user.ID,
			TotalAmount: total,
			Items:       eventItems,
			CreatedAt:   order.OrderDate,
		},
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, event); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to commit order",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)

		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.Int64("order_id", order.ID))

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", user.ID),
		zap.String("total_amount", total.String()),
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, user *domain.User, orderID int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, notFound("Order not found")
		}

		return nil, err
	}

	if order.UserID != user.ID {
		return nil, forbidden("You don't have permission to view this order")
	}

	return order, nil
}

func (s *orderService) GetUserOrders(ctx context.Context, user *domain.User) ([]domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, user.ID)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*domain.Order, error) {
	next, err := domain.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(status)))
	if err != nil {
		return nil, invalidRequest("Invalid order status: %s", status)
	}

	return s.changeStatus(ctx, "UpdateOrderStatus", orderID, func(order *domain.Order, now time.Time) error {
		return transition(order, next, now)
	})
}

// UpdateTrackingNumber always stores the number. Orders still waiting to ship
// are moved to SHIPPED; later states keep their status and dates.
func (s *orderService) UpdateTrackingNumber(ctx context.Context, orderID int64, trackingNumber string) (*domain.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, invalidRequest("Tracking number is required")
	}

	return s.changeStatus(ctx, "UpdateTrackingNumber", orderID, func(order *domain.Order, now time.Time) error {
		order.TrackingNumber = &trackingNumber

		if order.Status == domain.OrderStatusPending || order.Status == domain.OrderStatusProcessing {
			order.ApplyStatus(domain.OrderStatusShipped, now)
		}

		return nil
	})
}

func (s *orderService) MarkShipped(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.changeStatus(ctx, "MarkShipped", orderID, func(order *domain.Order, now time.Time) error {
		return transition(order, domain.OrderStatusShipped, now)
	})
}

func (s *orderService) MarkDelivered(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.changeStatus(ctx, "MarkDelivered", orderID, func(order *domain.Order, now time.Time) error {
		return transition(order, domain.OrderStatusDelivered, now)
	})
}

func (s *orderService) GetOrderStatistics(ctx context.Context, timeframe string) (*domain.OrderStatistics, error) {
	tf, err := domain.ParseTimeframe(timeframe)
	if err != nil {
		return nil, invalidRequest("Invalid timeframe parameter. Valid values: all, today, week, month, year")
	}

	from, to := tf.Window(s.now())

	summaries, err := s.orderRepo.ListSummariesBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return domain.NewOrderStatistics(tf, summaries, time.Local), nil
}

func (s *orderService) HandlePaymentSucceeded(ctx context.Context, event *generalDomain.PaymentSucceededEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePaymentSucceeded")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", event.OrderID),
		attribute.Int64("payment_id", event.PaymentID),
	)

	_, err := s.changeStatus(ctx, "HandlePaymentSucceeded", event.OrderID, func(order *domain.Order, now time.Time) error {
		return transition(order, domain.OrderStatusProcessing, now)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (s *orderService) HandlePaymentFailed(ctx context.Context, event *generalDomain.PaymentFailedEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePaymentFailed")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", event.OrderID),
		attribute.Int64("payment_id", event.PaymentID),
	)

	_, err := s.changeStatus(ctx, "HandlePaymentFailed", event.OrderID, func(order *domain.Order, now time.Time) error {
		return transition(order, domain.OrderStatusCancelled, now)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func transition(order *domain.Order, next domain.OrderStatus, now time.Time) error {
	if !order.Status.CanTransitionTo(next) {
		return invalidRequest("Cannot change order status from %s to %s", order.Status, next)
	}

	order.ApplyStatus(next, now)
	return nil
}

// changeStatus locks the order, lets mutate adjust it and persists the result.
// A status change also enqueues OrderStatusChanged in the same transaction.
func (s *orderService) changeStatus(
	ctx context.Context,
	method string,
	orderID int64,
	mutate func(order *domain.Order, now time.Time) error,
) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService."+method)
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer db.Rollback(ctx, tx, s.logger, method)

	order, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, notFound("Order not found")
		}

		span.RecordError(err)
		return nil, err
	}

	from := order.Status
	now := s.now()

	if err := mutate(order, now); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Order update rejected",
			zap.String("method_name", method),
			zap.Int64("order_id", orderID),
			zap.String("status", string(from)),
			zap.Error(err),
		)

		return nil, err
	}

	if err := s.orderRepo.UpdateFulfillment(ctx, tx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	changed := from != order.Status
	if changed {
		if err := s.saveStatusChanged(ctx, tx, order, from, now); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if changed {
		s.metrics.OrderStatusChanges.WithLabelValues(string(from), string(order.Status)).Inc()

		mylogger.Info(
			ctx,
			s.logger,
			"Order status changed",
			zap.Int64("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(order.Status)),
		)
	}

	return s.orderRepo.GetByID(ctx, orderID)
}

func (s *orderService) saveStatusChanged(ctx context.Context, tx pgx.Tx, order *domain.Order, from domain.OrderStatus, at time.Time) error {
	event, err := outboxDomain.NewEvent(
		orderAggregate,
		strconv.FormatInt(order.ID, 10),
		generalDomain.EventOrderStatusChanged,
		generalDomain.TopicOrderEvents,
		generalDomain.OrderStatusChangedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			From:      string(from),
			To:        string(order.Status),
			ChangedAt: at,
		},
	)
	if err != nil {
		return err
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, event)
}
