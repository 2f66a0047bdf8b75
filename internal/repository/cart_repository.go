package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartRepository interface {
	ListOpenItems(ctx context.Context, userID int64) ([]domain.CartItem, error)
	ListOpenItemsForUpdate(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.CartItem, error)
	GetOpenItem(ctx context.Context, tx pgx.Tx, userID, itemID int64) (*domain.CartItem, error)
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, itemID int64) (*domain.LineItem, error)
	GetOpenItemByProductForUpdate(ctx context.Context, tx pgx.Tx, userID, productID int64) (*domain.LineItem, error)
	Insert(ctx context.Context, tx pgx.Tx, item *domain.LineItem) error
	UpdateQuantity(ctx context.Context, tx pgx.Tx, itemID int64, quantity int32) error
	Delete(ctx context.Context, tx pgx.Tx, itemID int64) error
	DeleteOpenItems(ctx context.Context, userID int64) (int64, error)
	BindToOrder(ctx context.Context, tx pgx.Tx, itemID, orderID int64, unitPrice decimal.Decimal) error
}

type cartRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCartRepository(pool *pgxpool.Pool, logger *zap.Logger) CartRepository {
	return &cartRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("cart_repository"),
	}
}

const openItemsQuery = `
	SELECT ci.id, ci.product_id, ci.quantity,
		p.name, p.brand, p.size, p.color, p.price, p.image_url, p.stock
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.user_id = $1 AND ci.order_id IS NULL
`

func (r *cartRepo) ListOpenItems(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListOpenItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	items, err := r.queryCartItems(ctx, r.pool, openItemsQuery+` ORDER BY ci.created_at ASC, ci.id ASC`, userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to list cart items",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, err
	}

	return items, nil
}

// ListOpenItemsForUpdate locks the user's open cart rows together with their
// products. Rows are taken in product id order so that concurrent checkouts
// sharing products acquire locks in the same sequence.
func (r *cartRepo) ListOpenItemsForUpdate(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.CartItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListOpenItemsForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	items, err := r.queryCartItems(ctx, tx, openItemsQuery+` ORDER BY p.id ASC FOR UPDATE OF ci, p`, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("items_count", len(items)))

	return items, nil
}

// GetOpenItem reads a single open line joined with its product, inside tx so
// that uncommitted writes are visible.
func (r *cartRepo) GetOpenItem(ctx context.Context, tx pgx.Tx, userID, itemID int64) (*domain.CartItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetOpenItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("item_id", itemID),
	)

	items, err := r.queryCartItems(ctx, tx, openItemsQuery+` AND ci.id = $2`, userID, itemID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(items) == 0 {
		return nil, ErrCartItemNotFound
	}

	return &items[0], nil
}

func (r *cartRepo) queryCartItems(ctx context.Context, q querier, query string, args ...any) ([]domain.CartItem, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Quantity,
			&item.ProductName,
			&item.Brand,
			&item.Size,
			&item.Color,
			&item.Price,
			&item.ImageURL,
			&item.Stock,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		item.CalculateTotal()
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

func scanLineItem(row pgx.Row) (*domain.LineItem, error) {
	var item domain.LineItem
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.OrderID,
		&item.UnitPrice,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}

		return nil, err
	}

	return &item, nil
}

func (r *cartRepo) GetItemForUpdate(ctx context.Context, tx pgx.Tx, itemID int64) (*domain.LineItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetItemForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("item_id", itemID),
	)

	query := `
		SELECT id, user_id, product_id, quantity, order_id, unit_price, created_at, updated_at
		FROM cart_items
		WHERE id = $1
		FOR UPDATE
	`

	item, err := scanLineItem(tx.QueryRow(ctx, query, itemID))
	if err != nil {
		if !errors.Is(err, ErrCartItemNotFound) {
			span.RecordError(err)
			return nil, fmt.Errorf("error getting cart item %d: %w", itemID, err)
		}

		return nil, err
	}

	return item, nil
}

func (r *cartRepo) GetOpenItemByProductForUpdate(ctx context.Context, tx pgx.Tx, userID, productID int64) (*domain.LineItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetOpenItemByProductForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	query := `
		SELECT id, user_id, product_id, quantity, order_id, unit_price, created_at, updated_at
		FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND order_id IS NULL
		FOR UPDATE
	`

	item, err := scanLineItem(tx.QueryRow(ctx, query, userID, productID))
	if err != nil {
		if !errors.Is(err, ErrCartItemNotFound) {
			span.RecordError(err)
			return nil, fmt.Errorf("error getting open cart item: %w", err)
		}

		return nil, err
	}

	return item, nil
}

func (r *cartRepo) Insert(ctx context.Context, tx pgx.Tx, item *domain.LineItem) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", item.UserID),
		attribute.Int64("product_id", item.ProductID),
		attribute.Int("quantity", int(item.Quantity)),
	)

	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query, item.UserID, item.ProductID, item.Quantity).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert cart item",
			zap.Int64("user_id", item.UserID),
			zap.Int64("product_id", item.ProductID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert cart item: %w", err)
	}

	return nil
}

func (r *cartRepo) UpdateQuantity(ctx context.Context, tx pgx.Tx, itemID int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.UpdateQuantity")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("item_id", itemID),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE cart_items
		SET quantity = $2, updated_at = NOW()
		WHERE id = $1 AND order_id IS NULL
	`

	commandTag, err := tx.Exec(ctx, query, itemID, quantity)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

func (r *cartRepo) Delete(ctx context.Context, tx pgx.Tx, itemID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("item_id", itemID),
	)

	query := `
		DELETE FROM cart_items
		WHERE id = $1 AND order_id IS NULL
	`

	commandTag, err := tx.Exec(ctx, query, itemID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

func (r *cartRepo) DeleteOpenItems(ctx context.Context, userID int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.DeleteOpenItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `
		DELETE FROM cart_items
		WHERE user_id = $1 AND order_id IS NULL
	`

	commandTag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to clear cart",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}

	return commandTag.RowsAffected(), nil
}

// BindToOrder moves an open cart row into an order and freezes its price.
func (r *cartRepo) BindToOrder(ctx context.Context, tx pgx.Tx, itemID, orderID int64, unitPrice decimal.Decimal) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.BindToOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("item_id", itemID),
		attribute.Int64("order_id", orderID),
	)

	query := `
		UPDATE cart_items
		SET order_id = $2, unit_price = $3, updated_at = NOW()
		WHERE id = $1 AND order_id IS NULL
	`

	commandTag, err := tx.Exec(ctx, query, itemID, orderID, unitPrice)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to bind cart item %d: %w", itemID, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}
