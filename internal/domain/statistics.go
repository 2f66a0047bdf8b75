package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Timeframe string

const (
	TimeframeAll   Timeframe = "all"
	TimeframeToday Timeframe = "today"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
)

// DateLayout keys OrderStatistics.OrdersByDate.
const DateLayout = "2006-01-02"

var ErrUnknownTimeframe = errors.New("unknown timeframe")

func ParseTimeframe(raw string) (Timeframe, error) {
	switch Timeframe(raw) {
	case "", TimeframeAll:
		return TimeframeAll, nil
	case TimeframeToday, TimeframeWeek, TimeframeMonth, TimeframeYear:
		return Timeframe(raw), nil
	default:
		return "", ErrUnknownTimeframe
	}
}

// Window returns the [from, now] range covered by the timeframe. "all" is
// approximated by the last ten years.
func (t Timeframe) Window(now time.Time) (time.Time, time.Time) {
	switch t {
	case TimeframeToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), now
	case TimeframeWeek:
		return now.AddDate(0, 0, -7), now
	case TimeframeMonth:
		return now.AddDate(0, -1, 0), now
	case TimeframeYear:
		return now.AddDate(-1, 0, 0), now
	default:
		return now.AddDate(-10, 0, 0), now
	}
}

// OrderSummary is the slice of an order the statistics need.
type OrderSummary struct {
	OrderDate   time.Time
	TotalAmount decimal.Decimal
	Status      OrderStatus
}

type OrderStatistics struct {
	Timeframe        Timeframe        `json:"timeframe"`
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	TotalOrders      int64            `json:"total_orders"`
	PendingOrders    int64            `json:"pending_orders"`
	ProcessingOrders int64            `json:"processing_orders"`
	ShippedOrders    int64            `json:"shipped_orders"`
	DeliveredOrders  int64            `json:"delivered_orders"`
	CancelledOrders  int64            `json:"cancelled_orders"`
	OrdersByDate     map[string]int64 `json:"orders_by_date"`
}

// NewOrderStatistics aggregates orders; day buckets use loc.
func NewOrderStatistics(timeframe Timeframe, orders []OrderSummary, loc *time.Location) *OrderStatistics {
	stats := &OrderStatistics{
		Timeframe:    timeframe,
		TotalRevenue: decimal.Zero,
		OrdersByDate: make(map[string]int64),
	}

	for _, order := range orders {
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
		stats.OrdersByDate[order.OrderDate.In(loc).Format(DateLayout)]++

		switch order.Status {
		case OrderStatusPending:
			stats.PendingOrders++
		case OrderStatusProcessing:
			stats.ProcessingOrders++
		case OrderStatusShipped:
			stats.ShippedOrders++
		case OrderStatusDelivered:
			stats.DeliveredOrders++
		case OrderStatusCancelled:
			stats.CancelledOrders++
		}
	}

	return stats
}
