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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductHandler struct {
	products service.ProductService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewProductHandler(products service.ProductService, logger *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		validate: utils.NewValidator(),
		logger:   logger,
		timeout:  timeout,
	}
}

type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Brand       string          `json:"brand" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	Size        string          `json:"size" validate:"required"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock" validate:"gte=0"`
	Description string          `json:"description" validate:"max=2000"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
}

type ListProductsResponse struct {
	Products   []domain.Product `json:"products"`
	TotalCount int64            `json:"total_count"`
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "limit is invalid")
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "offset is invalid")
	}

	search := c.Query("search")

	products, total, err := h.products.List(ctx, limit, offset, search)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	mylogger.Debug(
		ctx,
		h.logger,
		"list products succeeded",
		zap.Int64("offset", offset),
		zap.Int64("limit", limit),
		zap.String("search", search),
		zap.Int64("total", total),
	)

	return c.Status(fiber.StatusOK).JSON(ListProductsResponse{
		Products:   products,
		TotalCount: total,
	})
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, ok := paramID(c, "id")
	if !ok {
		return response.Error(c, fiber.StatusBadRequest, "invalid id")
	}

	product, err := h.products.FindByID(ctx, id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(product)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(CreateProductInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in create", zap.Error(err))
		return response.Error(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.ValidationError(c, utils.FormatValidationError(err))
	}

	product := &domain.Product{
		Name:        input.Name,
		Brand:       input.Brand,
		Category:    input.Category,
		Size:        input.Size,
		Color:       input.Color,
		Price:       input.Price,
		Stock:       input.Stock,
		Description: input.Description,
		ImageURL:    input.ImageURL,
	}

	if err := h.products.Create(ctx, product); err != nil {
		return response.FromError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, ok := paramID(c, "id")
	if !ok {
		return response.Error(c, fiber.StatusBadRequest, "invalid id")
	}

	input := new(domain.UpdateProductInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in update", zap.Error(err))
		return response.Error(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return response.ValidationError(c, utils.FormatValidationError(err))
	}

	product, err := h.products.Update(ctx, id, input)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	mylogger.Info(ctx, h.logger, "product updated", zap.Int64("product_id", id))

	return c.Status(fiber.StatusOK).JSON(product)
}
