package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/response"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"github.com/sakashimaa/shoe-shop/pkg/utils"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders   service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: utils.NewValidator(),
		logger:   logger,
		timeout:  timeout,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	input := new(domain.ShippingDetails)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in create order", zap.Error(err))
		return response.Error(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.ValidationError(c, utils.FormatValidationError(err))
	}

	order, err := h.orders.CreateOrder(ctx, user, *input)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"create order succeeded",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", user.ID),
	)

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	id, ok := paramID(c, "id")
	if !ok {
		return response.Error(c, fiber.StatusBadRequest, "invalid order id")
	}

	order, err := h.orders.GetOrder(ctx, user, id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	orders, err := h.orders.GetUserOrders(ctx, user)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	return h.adminUpdate(c, func(ctx context.Context, id int64) (*domain.Order, error) {
		return h.orders.UpdateOrderStatus(ctx, id, c.Query("status"))
	})
}

func (h *OrderHandler) UpdateTracking(c *fiber.Ctx) error {
	return h.adminUpdate(c, func(ctx context.Context, id int64) (*domain.Order, error) {
		return h.orders.UpdateTrackingNumber(ctx, id, c.Query("tracking_number"))
	})
}

func (h *OrderHandler) MarkShipped(c *fiber.Ctx) error {
	return h.adminUpdate(c, h.orders.MarkShipped)
}

func (h *OrderHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.adminUpdate(c, h.orders.MarkDelivered)
}

func (h *OrderHandler) Statistics(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	stats, err := h.orders.GetOrderStatistics(ctx, c.Query("timeframe"))
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *OrderHandler) adminUpdate(c *fiber.Ctx, update func(ctx context.Context, id int64) (*domain.Order, error)) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, ok := paramID(c, "id")
	if !ok {
		return response.Error(c, fiber.StatusBadRequest, "invalid order id")
	}

	order, err := update(ctx, id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"order updated",
		zap.Int64("order_id", id),
		zap.String("status", string(order.Status)),
	)

	return c.Status(fiber.StatusOK).JSON(order)
}
