package handler_test

import (
	"context"

	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/service"
	generalDomain "github.com/sakashimaa/shoe-shop/pkg/domain"
)

type fakeProductService struct {
	service.ProductService
	product *domain.Product
	err     error
	created *domain.Product
	listed  [3]any
}

func (f *fakeProductService) FindByID(_ context.Context, _ int64) (*domain.Product, error) {
	return f.product, f.err
}

func (f *fakeProductService) Create(_ context.Context, product *domain.Product) error {
	product.ID = 10
	f.created = product
	return f.err
}

func (f *fakeProductService) List(_ context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	f.listed = [3]any{limit, offset, search}
	return []domain.Product{}, 0, f.err
}

type fakeCartService struct {
	service.CartService
	cart      *domain.Cart
	item      *domain.CartItem
	err       error
	productID int64
	quantity  int32
	itemID    int64
	cleared   bool
}

func (f *fakeCartService) GetCart(_ context.Context, _ *domain.User) (*domain.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) AddToCart(_ context.Context, _ *domain.User, productID int64, quantity int32) (*domain.CartItem, error) {
	f.productID = productID
	f.quantity = quantity
	return f.item, f.err
}

func (f *fakeCartService) UpdateCartItem(_ context.Context, _ *domain.User, itemID int64, quantity int32) (*domain.CartItem, error) {
	f.itemID = itemID
	f.quantity = quantity
	return f.item, f.err
}

func (f *fakeCartService) RemoveFromCart(_ context.Context, _ *domain.User, itemID int64) error {
	f.itemID = itemID
	return f.err
}

func (f *fakeCartService) ClearCart(_ context.Context, _ *domain.User) error {
	f.cleared = true
	return f.err
}

type fakeOrderService struct {
	service.OrderService
	order     *domain.Order
	stats     *domain.OrderStatistics
	err       error
	shipping  domain.ShippingDetails
	status    string
	tracking  string
	timeframe string
}

func (f *fakeOrderService) CreateOrder(_ context.Context, _ *domain.User, shipping domain.ShippingDetails) (*domain.Order, error) {
	f.shipping = shipping
	return f.order, f.err
}

func (f *fakeOrderService) GetOrder(_ context.Context, _ *domain.User, _ int64) (*domain.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) GetUserOrders(_ context.Context, _ *domain.User) ([]domain.Order, error) {
	if f.order == nil {
		return []domain.Order{}, f.err
	}

	return []domain.Order{*f.order}, f.err
}

func (f *fakeOrderService) UpdateOrderStatus(_ context.Context, _ int64, status string) (*domain.Order, error) {
	f.status = status
	return f.order, f.err
}

func (f *fakeOrderService) UpdateTrackingNumber(_ context.Context, _ int64, tracking string) (*domain.Order, error) {
	f.tracking = tracking
	return f.order, f.err
}

func (f *fakeOrderService) MarkShipped(_ context.Context, _ int64) (*domain.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) MarkDelivered(_ context.Context, _ int64) (*domain.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) GetOrderStatistics(_ context.Context, timeframe string) (*domain.OrderStatistics, error) {
	f.timeframe = timeframe
	return f.stats, f.err
}

func (f *fakeOrderService) HandlePaymentSucceeded(_ context.Context, _ *generalDomain.PaymentSucceededEvent) error {
	return f.err
}

func (f *fakeOrderService) HandlePaymentFailed(_ context.Context, _ *generalDomain.PaymentFailedEvent) error {
	return f.err
}
