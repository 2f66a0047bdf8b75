package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a cart row. While OrderID is nil it belongs to the user's live
// cart; once bound it is a frozen part of the order and UnitPrice holds the
// price paid.
type LineItem struct {
	ID        int64            `db:"id"`
	UserID    int64            `db:"user_id"`
	ProductID int64            `db:"product_id"`
	Quantity  int32            `db:"quantity"`
	OrderID   *int64           `db:"order_id"`
	UnitPrice *decimal.Decimal `db:"unit_price"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}

func (i *LineItem) IsBound() bool {
	return i.OrderID != nil
}

// CartItem is an unbound line item joined with the product's current data.
type CartItem struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Brand       string          `json:"brand"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int32           `json:"-"`
	Quantity    int32           `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

func (i *CartItem) CalculateTotal() {
	i.TotalPrice = i.Price.Mul(decimal.NewFromInt32(i.Quantity))
}

type Cart struct {
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	TotalItems int64           `json:"total_items"`
}

func NewCart(items []CartItem) *Cart {
	cart := &Cart{
		Items:      make([]CartItem, 0, len(items)),
		TotalPrice: decimal.Zero,
	}

	for _, item := range items {
		item.CalculateTotal()
		cart.TotalPrice = cart.TotalPrice.Add(item.TotalPrice)
		cart.TotalItems += int64(item.Quantity)
		cart.Items = append(cart.Items, item)
	}

	return cart
}
