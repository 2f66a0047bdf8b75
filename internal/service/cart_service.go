package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/metrics"
	"github.com/sakashimaa/shoe-shop/internal/repository"
	"github.com/sakashimaa/shoe-shop/pkg/db"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, user *domain.User) (*domain.Cart, error)
	AddToCart(ctx context.Context, user *domain.User, productID int64, quantity int32) (*domain.CartItem, error)
	UpdateCartItem(ctx context.Context, user *domain.User, itemID int64, quantity int32) (*domain.CartItem, error)
	RemoveFromCart(ctx context.Context, user *domain.User, itemID int64) error
	ClearCart(ctx context.Context, user *domain.User) error
}

type cartService struct {
	pool        *pgxpool.Pool
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewCartService(
	pool *pgxpool.Pool,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) CartService {
	return &cartService{
		pool:        pool,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		metrics:     m,
		logger:      logger,
		tracer:      otel.Tracer("cart_service"),
	}
}

func (s *cartService) GetCart(ctx context.Context, user *domain.User) (*domain.Cart, error) {
	items, err := s.cartRepo.ListOpenItems(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return domain.NewCart(items), nil
}

// AddToCart merges into an existing open line for the same product. The stock
// check covers the merged quantity, not only the increment. The cart row is
// locked before the product row, matching CreateOrder.
func (s *cartService) AddToCart(ctx context.Context, user *domain.User, productID int64, quantity int32) (*domain.CartItem, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AddToCart")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", user.ID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
	)

	if quantity < 1 {
		return nil, invalidRequest("Quantity must be at least 1")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, err
	}
	defer db.Rollback(ctx, tx, s.logger, "AddToCart")

	existing, err := s.cartRepo.GetOpenItemByProductForUpdate(ctx, tx, user.ID, productID)
	if err != nil && !errors.Is(err, repository.ErrCartItemNotFound) {
		span.RecordError(err)
		return nil, err
	}

	product, err := s.productRepo.GetByIDForUpdate(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, notFound("Product not found")
		}

		span.RecordError(err)
		return nil, err
	}

	var itemID int64
	if existing != nil {
		// Stock minus the held quantity cannot overflow; the merged sum can.
		if quantity > product.Stock-existing.Quantity {
			return nil, invalidRequest("Not enough stock available")
		}

		itemID = existing.ID
		if err := s.cartRepo.UpdateQuantity(ctx, tx, existing.ID, existing.Quantity+quantity); err != nil {
			span.RecordError(err)
			return nil, err
		}
	} else {
		if !product.HasStock(quantity) {
			return nil, invalidRequest("Not enough stock available")
		}

		item := &domain.LineItem{
			UserID:    user.ID,
			ProductID: productID,
			Quantity:  quantity,
		}
		if err := s.cartRepo.Insert(ctx, tx, item); err != nil {
			span.RecordError(err)
			return nil, err
		}
		itemID = item.ID
	}

	result, err := s.cartRepo.GetOpenItem(ctx, tx, user.ID, itemID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, err
	}

	s.metrics.CartOperations.WithLabelValues("add").Inc()

	mylogger.Info(
		ctx,
		s.logger,
		"Product added to cart",
		zap.Int64("user_id", user.ID),
		zap.Int64("product_id", productID),
		zap.Int32("quantity", quantity),
	)

	return result, nil
}

func (s *cartService) UpdateCartItem(ctx context.Context, user *domain.User, itemID int64, quantity int32) (*domain.CartItem, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.UpdateCartItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", user.ID),
		attribute.Int64("item_id", itemID),
		attribute.Int("quantity", int(quantity)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer db.Rollback(ctx, tx, s.logger, "UpdateCartItem")

	item, err := s.ownedOpenItem(ctx, tx, user, itemID, "update", "Cannot update item in completed order")
	if err != nil {
		return nil, err
	}

	if quantity < 1 {
		return nil, invalidRequest("Quantity must be at least 1")
	}

	product, err := s.productRepo.GetByIDForUpdate(ctx, tx, item.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, notFound("Product not found")
		}

		span.RecordError(err)
		return nil, err
	}

	if !product.HasStock(quantity) {
		return nil, invalidRequest("Not enough stock available")
	}

	if err := s.cartRepo.UpdateQuantity(ctx, tx, item.ID, quantity); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := s.cartRepo.GetOpenItem(ctx, tx, user.ID, item.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.CartOperations.WithLabelValues("update").Inc()

	return result, nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, user *domain.User, itemID int64) error {
	ctx, span := s.tracer.Start(ctx, "CartService.RemoveFromCart")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", user.ID),
		attribute.Int64("item_id", itemID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer db.Rollback(ctx, tx, s.logger, "RemoveFromCart")

	item, err := s.ownedOpenItem(ctx, tx, user, itemID, "remove", "Cannot remove item from completed order")
	if err != nil {
		return err
	}

	if err := s.cartRepo.Delete(ctx, tx, item.ID); err != nil {
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	s.metrics.CartOperations.WithLabelValues("remove").Inc()

	return nil
}

// ClearCart removes every open line. Bound lines are history and stay.
func (s *cartService) ClearCart(ctx context.Context, user *domain.User) error {
	removed, err := s.cartRepo.DeleteOpenItems(ctx, user.ID)
	if err != nil {
		return err
	}

	s.metrics.CartOperations.WithLabelValues("clear").Inc()

	mylogger.Debug(
		ctx,
		s.logger,
		"Cart cleared",
		zap.Int64("user_id", user.ID),
		zap.Int64("removed", removed),
	)

	return nil
}

// ownedOpenItem loads and locks a line item, checking that it exists, belongs
// to user and has not been bound to an order, in that order.
func (s *cartService) ownedOpenItem(
	ctx context.Context,
	tx pgx.Tx,
	user *domain.User,
	itemID int64,
	action string,
	boundMessage string,
) (*domain.LineItem, error) {
	item, err := s.cartRepo.GetItemForUpdate(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return nil, notFound("Cart item not found")
		}

		return nil, err
	}

	if item.UserID != user.ID {
		mylogger.Warn(
			ctx,
			s.logger,
			"Cart item ownership mismatch",
			zap.Int64("user_id", user.ID),
			zap.Int64("item_id", itemID),
		)

		return nil, forbidden("You don't have permission to %s this cart item", action)
	}

	if item.IsBound() {
		return nil, invalidRequest("%s", boundMessage)
	}

	return item, nil
}
