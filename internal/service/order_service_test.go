package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/service"
	generalDomain "github.com/sakashimaa/shoe-shop/pkg/domain"
	outboxUtils "github.com/sakashimaa/shoe-shop/pkg/outbox/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	user := s.seedUser(1, domain.RoleUser)
	productA := s.seedProduct("Gel-Kayano", "50.00", 3)
	productB := s.seedProduct("Novablast", "20.00", 1)

	_, err := s.CartService.AddToCart(s.Ctx, user, productA.ID, 2)
	s.Require().NoError(err)
	_, err = s.CartService.AddToCart(s.Ctx, user, productB.ID, 1)
	s.Require().NoError(err)

	order, err := s.OrderService.CreateOrder(s.Ctx, user, s.shipping())
	s.Require().NoError(err)

	s.True(decimal.RequireFromString("120.00").Equal(order.TotalAmount))
	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(user.Username, order.Username)
	s.Equal("London", order.City)
	s.Equal("leave at the door", order.OrderNotes)
	s.Len(order.Items, 2)

	s.Equal(int32(1), s.stockOf(productA.ID))
	s.Equal(int32(0), s.stockOf(productB.ID))

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Empty(cart.Items)
}

func (s *IntegrationTestSuite) TestCreateOrder_ResponseMatchesStoredOrder() {
	user := s.seedUser(1, domain.RoleUser)
	productA := s.seedProduct("Gel-Kayano", "50.00", 3)
	productB := s.seedProduct("Novablast", "20.00", 5)

	_, err := s.CartService.AddToCart(s.Ctx, user, productB.ID, 3)
	s.Require().NoError(err)
	_, err = s.CartService.AddToCart(s.Ctx, user, productA.ID, 1)
	s.Require().NoError(err)

	created, err := s.OrderService.CreateOrder(s.Ctx, user, s.shipping())
	s.Require().NoError(err)

	stored, err := s.OrderService.GetOrder(s.Ctx, user, created.ID)
	s.Require().NoError(err)

	s.Equal(stored.ID, created.ID)
	s.Equal(stored.Status, created.Status)
	s.True(stored.TotalAmount.Equal(created.TotalAmount))
	s.WithinDuration(stored.OrderDate, created.OrderDate, time.Millisecond)
	s.Equal(stored.ShippingDetails, created.ShippingDetails)

	s.Require().Len(created.Items, len(stored.Items))
	for i := range stored.Items {
		s.Equal(stored.Items[i].ID, created.Items[i].ID)
		s.Equal(stored.Items[i].ProductID, created.Items[i].ProductID)
		s.Equal(stored.Items[i].ProductName, created.Items[i].ProductName)
		s.Equal(stored.Items[i].Quantity, created.Items[i].Quantity)
		s.True(stored.Items[i].UnitPrice.Equal(created.Items[i].UnitPrice))
		s.True(stored.Items[i].TotalPrice.Equal(created.Items[i].TotalPrice))
	}
}

func (s *IntegrationTestSuite) TestCreateOrder_EmptyCart() {
	user := s.seedUser(1, domain.RoleUser)

	_, err := s.OrderService.CreateOrder(s.Ctx, user, s.shipping())
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Cart is empty. Cannot create order.")
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientStockLeavesNoTrace() {
	user := s.seedUser(1, domain.RoleUser)
	productA := s.seedProduct("Gel-Kayano", "50.00", 5)
	productB := s.seedProduct("Novablast", "20.00", 2)

	_, err := s.CartService.AddToCart(s.Ctx, user, productA.ID, 1)
	s.Require().NoError(err)
	_, err = s.CartService.AddToCart(s.Ctx, user, productB.ID, 2)
	s.Require().NoError(err)

	stock := int32(1)
	_, err = s.ProductService.Update(s.Ctx, productB.ID, &domain.UpdateProductInput{Stock: &stock})
	s.Require().NoError(err)

	_, err = s.OrderService.CreateOrder(s.Ctx, user, s.shipping())
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Not enough stock for Novablast")

	s.Equal(int32(5), s.stockOf(productA.ID))
	s.Equal(int32(1), s.stockOf(productB.ID))

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 2)
	s.Equal(int64(3), cart.TotalItems)

	var orders int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	s.Zero(orders)

	var events int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM outbox`).Scan(&events))
	s.Zero(events)
}

func (s *IntegrationTestSuite) TestCreateOrder_ConcurrentCheckoutNeverOversells() {
	product := s.seedProduct("Gel-Kayano", "50.00", 1)

	const buyers = 5
	users := make([]*domain.User, 0, buyers)
	for i := int64(1); i <= buyers; i++ {
		user := s.seedUser(i, domain.RoleUser)
		_, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 1)
		s.Require().NoError(err)
		users = append(users, user)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for _, user := range users {
		wg.Add(1)
		go func(user *domain.User) {
			defer wg.Done()

			_, err := s.OrderService.CreateOrder(s.Ctx, user, s.shipping())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, service.ErrInvalidRequest):
				rejected++
			}
		}(user)
	}
	wg.Wait()

	s.Equal(1, success)
	s.Equal(buyers-1, rejected)
	s.Equal(int32(0), s.stockOf(product.ID))
}

func (s *IntegrationTestSuite) TestCreateOrder_PublishesOutboxEvent() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 3)
	order := s.placeOrder(user, product, 1)

	var eventType string
	err := s.DbPool.QueryRow(s.Ctx, `SELECT event_type FROM outbox WHERE aggregate_id = $1`, fmt.Sprintf("%d", order.ID)).
		Scan(&eventType)
	s.Require().NoError(err)
	s.Equal(generalDomain.EventOrderCreated, eventType)

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, `SELECT published_at FROM outbox WHERE aggregate_id = $1`, fmt.Sprintf("%d", order.ID)).
			Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestGetOrder_PriceIsFrozen() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 3)
	order := s.placeOrder(user, product, 2)

	price := decimal.RequireFromString("999.99")
	_, err := s.ProductService.Update(s.Ctx, product.ID, &domain.UpdateProductInput{Price: &price})
	s.Require().NoError(err)

	got, err := s.OrderService.GetOrder(s.Ctx, user, order.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Items, 1)
	s.True(decimal.RequireFromString("50.00").Equal(got.Items[0].UnitPrice))
	s.True(decimal.RequireFromString("100.00").Equal(got.Items[0].TotalPrice))
	s.True(decimal.RequireFromString("100.00").Equal(got.TotalAmount))
}

func (s *IntegrationTestSuite) TestGetOrder_Ownership() {
	owner := s.seedUser(1, domain.RoleUser)
	stranger := s.seedUser(2, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 3)
	order := s.placeOrder(owner, product, 1)

	_, err := s.OrderService.GetOrder(s.Ctx, stranger, order.ID)
	s.Require().ErrorIs(err, service.ErrForbidden)

	_, err = s.OrderService.GetOrder(s.Ctx, owner, 9999)
	s.Require().ErrorIs(err, service.ErrNotFound)
}

func (s *IntegrationTestSuite) TestGetUserOrders_NewestFirst() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	first := s.placeOrder(user, product, 1)
	second := s.placeOrder(user, product, 2)

	orders, err := s.OrderService.GetUserOrders(s.Ctx, user)
	s.Require().NoError(err)
	s.Require().Len(orders, 2)
	s.Equal(second.ID, orders[0].ID)
	s.Equal(first.ID, orders[1].ID)
	s.Len(orders[0].Items, 1)
	s.Equal(int32(2), orders[0].Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestUpdateTrackingNumber_AdvancesOnce() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 3)
	order := s.placeOrder(user, product, 1)

	order, err := s.OrderService.UpdateOrderStatus(s.Ctx, order.ID, "PROCESSING")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusProcessing, order.Status)

	order, err = s.OrderService.UpdateTrackingNumber(s.Ctx, order.ID, "TRK1")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusShipped, order.Status)
	s.Require().NotNil(order.ShippedDate)
	s.Require().NotNil(order.TrackingNumber)
	s.Equal("TRK1", *order.TrackingNumber)
	shippedAt := *order.ShippedDate

	order, err = s.OrderService.UpdateTrackingNumber(s.Ctx, order.ID, "TRK2")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusShipped, order.Status)
	s.Equal("TRK2", *order.TrackingNumber)
	s.True(shippedAt.Equal(*order.ShippedDate))

	_, err = s.OrderService.UpdateTrackingNumber(s.Ctx, order.ID, "  ")
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
}

func (s *IntegrationTestSuite) TestStatusTransitions() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 3)
	order := s.placeOrder(user, product, 1)

	_, err := s.OrderService.MarkDelivered(s.Ctx, order.ID)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Cannot change order status from PENDING to DELIVERED")

	shipped, err := s.OrderService.MarkShipped(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusShipped, shipped.Status)
	s.NotNil(shipped.ShippedDate)

	delivered, err := s.OrderService.MarkDelivered(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusDelivered, delivered.Status)
	s.NotNil(delivered.DeliveredDate)

	_, err = s.OrderService.MarkShipped(s.Ctx, order.ID)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)

	_, err = s.OrderService.UpdateOrderStatus(s.Ctx, order.ID, "PENDING")
	s.Require().ErrorIs(err, service.ErrInvalidRequest)

	_, err = s.OrderService.UpdateOrderStatus(s.Ctx, order.ID, "LOST")
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Invalid order status: LOST")

	_, err = s.OrderService.MarkShipped(s.Ctx, 9999)
	s.Require().ErrorIs(err, service.ErrNotFound)

	var changes int
	err = s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = $2`,
		fmt.Sprintf("%d", order.ID),
		generalDomain.EventOrderStatusChanged,
	).Scan(&changes)
	s.Require().NoError(err)
	s.Equal(2, changes)
}

func (s *IntegrationTestSuite) TestGetOrderStatistics_Week() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	recent := s.placeOrder(user, product, 1)
	old := s.placeOrder(user, product, 2)

	_, err := s.DbPool.Exec(s.Ctx, `UPDATE orders SET order_date = NOW() - INTERVAL '10 days' WHERE id = $1`, old.ID)
	s.Require().NoError(err)

	stats, err := s.OrderService.GetOrderStatistics(s.Ctx, "week")
	s.Require().NoError(err)
	s.Equal(domain.TimeframeWeek, stats.Timeframe)
	s.Equal(int64(1), stats.TotalOrders)
	s.Equal(int64(1), stats.PendingOrders)
	s.True(recent.TotalAmount.Equal(stats.TotalRevenue))
	s.Len(stats.OrdersByDate, 1)

	all, err := s.OrderService.GetOrderStatistics(s.Ctx, "")
	s.Require().NoError(err)
	s.Equal(domain.TimeframeAll, all.Timeframe)
	s.Equal(int64(2), all.TotalOrders)
	s.True(decimal.RequireFromString("150.00").Equal(all.TotalRevenue))

	_, err = s.OrderService.GetOrderStatistics(s.Ctx, "decade")
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Invalid timeframe parameter. Valid values: all, today, week, month, year")
}

func (s *IntegrationTestSuite) TestPaymentEvents() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	paid := s.placeOrder(user, product, 1)
	err := s.OrderService.HandlePaymentSucceeded(s.Ctx, &generalDomain.PaymentSucceededEvent{EventID: 1, OrderID: paid.ID})
	s.Require().NoError(err)

	got, err := s.OrderService.GetOrder(s.Ctx, user, paid.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusProcessing, got.Status)

	failed := s.placeOrder(user, product, 1)
	err = s.OrderService.HandlePaymentFailed(s.Ctx, &generalDomain.PaymentFailedEvent{EventID: 2, OrderID: failed.ID})
	s.Require().NoError(err)

	got, err = s.OrderService.GetOrder(s.Ctx, user, failed.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, got.Status)
	s.Equal(int32(8), s.stockOf(product.ID))

	err = s.OrderService.HandlePaymentSucceeded(s.Ctx, &generalDomain.PaymentSucceededEvent{EventID: 3, OrderID: failed.ID})
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
}

func (s *IntegrationTestSuite) TestPaymentEvents_Deduplicated() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)
	order := s.placeOrder(user, product, 1)

	calls := 0
	handle := func(ctx context.Context) error {
		calls++
		return s.OrderService.HandlePaymentSucceeded(ctx, &generalDomain.PaymentSucceededEvent{EventID: 42, OrderID: order.ID})
	}

	s.Require().NoError(outboxUtils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), 42, handle))
	s.Require().NoError(outboxUtils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), 42, handle))
	s.Equal(1, calls)
}

func (s *IntegrationTestSuite) TestUserRegistered_Upserts() {
	err := s.UserService.HandleUserRegistered(s.Ctx, &generalDomain.UserRegisteredEvent{
		UserID: 7,
		Email:  "seven@example.com",
	})
	s.Require().NoError(err)

	user, err := s.UserService.Resolve(s.Ctx, 7)
	s.Require().NoError(err)
	s.Equal(domain.RoleUser, user.Role)
	s.Equal("seven@example.com", user.Username)

	err = s.UserService.HandleUserRegistered(s.Ctx, &generalDomain.UserRegisteredEvent{
		UserID:   7,
		Email:    "seven@example.com",
		Username: "seven",
		Role:     "ADMIN",
	})
	s.Require().NoError(err)

	user, err = s.UserService.Resolve(s.Ctx, 7)
	s.Require().NoError(err)
	s.True(user.IsAdmin())
	s.Equal("seven", user.Username)

	err = s.UserService.HandleUserRegistered(s.Ctx, &generalDomain.UserRegisteredEvent{UserID: 8, Email: "x@example.com", Role: "ROOT"})
	s.Require().ErrorIs(err, service.ErrInvalidRequest)

	_, err = s.UserService.Resolve(s.Ctx, 9999)
	s.Require().ErrorIs(err, service.ErrUnauthorized)
}
