package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/response"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"github.com/sakashimaa/shoe-shop/pkg/utils"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts    service.CartService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCartHandler(carts service.CartService, logger *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		validate: utils.NewValidator(),
		logger:   logger,
		timeout:  timeout,
	}
}

type AddToCartInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity"`
}

type UpdateCartItemInput struct {
	Quantity int32 `json:"quantity"`
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	cart, err := h.carts.GetCart(ctx, user)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(cart)
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	input := new(AddToCartInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in add to cart", zap.Error(err))
		return response.Error(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.ValidationError(c, utils.FormatValidationError(err))
	}

	item, err := h.carts.AddToCart(ctx, user, input.ProductID, input.Quantity)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	itemID, ok := paramID(c, "itemId")
	if !ok {
		return response.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	input := new(UpdateCartItemInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in update cart item", zap.Error(err))
		return response.Error(c, fiber.StatusBadRequest, "error parsing body")
	}

	item, err := h.carts.UpdateCartItem(ctx, user, itemID, input.Quantity)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(item)
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	itemID, ok := paramID(c, "itemId")
	if !ok {
		return response.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	if err := h.carts.RemoveFromCart(ctx, user, itemID); err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	user, ok := response.User(c)
	if !ok {
		return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
	}

	if err := h.carts.ClearCart(ctx, user); err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
