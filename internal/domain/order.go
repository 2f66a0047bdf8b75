package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var ErrUnknownOrderStatus = errors.New("unknown order status")

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	for _, status := range OrderStatuses {
		if string(status) == raw {
			return status, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownOrderStatus, raw)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

type ShippingDetails struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Address        string `json:"address" validate:"required"`
	City           string `json:"city" validate:"required"`
	State          string `json:"state" validate:"required"`
	ZipCode        string `json:"zip_code" validate:"required"`
	Country        string `json:"country" validate:"required"`
	PhoneNumber    string `json:"phone_number" validate:"required,phone"`
	PaymentMethod  string `json:"payment_method"`
	OrderNotes     string `json:"order_notes" validate:"max=1000"`
	ShippingMethod string `json:"shipping_method"`
}

type Order struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Username       string          `json:"username"`
	OrderDate      time.Time       `json:"order_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         OrderStatus     `json:"status"`
	Items          []OrderItem     `json:"items"`
	TrackingNumber *string         `json:"tracking_number"`
	ShippedDate    *time.Time      `json:"shipped_date"`
	DeliveredDate  *time.Time      `json:"delivered_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ShippingDetails
}

// OrderItem is a bound line item priced at the unit price frozen at order time.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Brand       string          `json:"brand"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	ImageURL    string          `json:"image_url"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

func (i *OrderItem) CalculateTotal() {
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].CalculateTotal()
		total = total.Add(o.Items[i].TotalPrice)
	}
	o.TotalAmount = total
}

// ApplyStatus moves the order to next and stamps the shipped or delivered
// date when that state is entered. It does not consult the transition table.
func (o *Order) ApplyStatus(next OrderStatus, at time.Time) {
	o.Status = next

	switch next {
	case OrderStatusShipped:
		o.ShippedDate = &at
	case OrderStatusDelivered:
		o.DeliveredDate = &at
	}
}
