package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	UpdateFulfillment(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	ListSummariesBetween(ctx context.Context, from, to time.Time) ([]domain.OrderSummary, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

const orderColumns = `o.id, o.user_id, u.username, o.order_date, o.total_amount, o.status,
		o.first_name, o.last_name, o.address, o.city, o.state, o.zip_code, o.country,
		o.phone_number, o.payment_method, o.order_notes, o.shipping_method,
		o.tracking_number, o.shipped_date, o.delivered_date, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Username,
		&o.OrderDate,
		&o.TotalAmount,
		&o.Status,
		&o.FirstName,
		&o.LastName,
		&o.Address,
		&o.City,
		&o.State,
		&o.ZipCode,
		&o.Country,
		&o.PhoneNumber,
		&o.PaymentMethod,
		&o.OrderNotes,
		&o.ShippingMethod,
		&o.TrackingNumber,
		&o.ShippedDate,
		&o.DeliveredDate,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		return nil, err
	}

	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int("items_count", len(order.Items)),
	)

	query := `
		INSERT INTO orders (
			user_id, order_date, total_amount, status,
			first_name, last_name, address, city, state, zip_code, country,
			phone_number, payment_method, order_notes, shipping_method
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		order.UserID,
		order.OrderDate,
		order.TotalAmount,
		string(order.Status),
		order.FirstName,
		order.LastName,
		order.Address,
		order.City,
		order.State,
		order.ZipCode,
		order.Country,
		order.PhoneNumber,
		order.PaymentMethod,
		order.OrderNotes,
		order.ShippingMethod,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Int64("user_id", order.UserID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", id),
	)

	query := `SELECT ` + orderColumns + `
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to get order",
				zap.Int64("order_id", id),
				zap.Error(err),
			)

			return nil, fmt.Errorf("failed to get order: %w", err)
		}

		return nil, err
	}

	items, err := r.itemsOfOrders(ctx, r.pool, []int64{order.ID})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

// GetForUpdate locks the order row. Items are not loaded.
func (r *orderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", id),
	)

	query := `SELECT ` + orderColumns + `
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
		FOR UPDATE OF o`

	order, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
		}

		return nil, err
	}

	return order, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + orderColumns + `
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.order_date DESC, o.id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query user orders",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.itemsOfOrders(ctx, r.pool, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// itemsOfOrders loads bound line items priced at their stored unit price.
func (r *orderRepo) itemsOfOrders(ctx context.Context, q querier, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query := `
		SELECT ci.id, ci.order_id, ci.product_id, p.name, p.brand, p.size, p.color, p.image_url,
			ci.unit_price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.order_id = ANY($1)
		ORDER BY ci.order_id, ci.id
	`

	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Brand,
			&item.Size,
			&item.Color,
			&item.ImageURL,
			&item.UnitPrice,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item.CalculateTotal()
		result[item.OrderID] = append(result[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateFulfillment persists the mutable part of an order: status, tracking
// number and the shipped/delivered stamps.
func (r *orderRepo) UpdateFulfillment(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateFulfillment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.String("status", string(order.Status)),
	)

	query := `
		UPDATE orders
		SET status = $2,
			tracking_number = $3,
			shipped_date = $4,
			delivered_date = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		order.ID,
		string(order.Status),
		order.TrackingNumber,
		order.ShippedDate,
		order.DeliveredDate,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

func (r *orderRepo) ListSummariesBetween(ctx context.Context, from, to time.Time) ([]domain.OrderSummary, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListSummariesBetween")
	defer span.End()

	span.SetAttributes(
		attribute.String("from", from.Format(time.RFC3339)),
		attribute.String("to", to.Format(time.RFC3339)),
	)

	query := `
		SELECT order_date, total_amount, status
		FROM orders
		WHERE order_date BETWEEN $1 AND $2
		ORDER BY order_date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query orders in range: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.OrderSummary, 0)
	for rows.Next() {
		var s domain.OrderSummary
		if err := rows.Scan(&s.OrderDate, &s.TotalAmount, &s.Status); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(summaries)))

	return summaries, nil
}
