package service_test

import (
	"math"
	"sync"

	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) TestAddToCart_ReturnsItem() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "100.00", 10)

	item, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 2)
	s.Require().NoError(err)

	s.NotZero(item.ID)
	s.Equal(product.ID, item.ProductID)
	s.Equal("Gel-Kayano", item.ProductName)
	s.Equal(int32(2), item.Quantity)
	s.True(decimal.RequireFromString("100.00").Equal(item.Price))
	s.True(decimal.RequireFromString("200.00").Equal(item.TotalPrice))
}

func (s *IntegrationTestSuite) TestAddToCart_MergesSameProduct() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "100.00", 10)

	first, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 2)
	s.Require().NoError(err)

	merged, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 3)
	s.Require().NoError(err)
	s.Equal(first.ID, merged.ID)
	s.Equal(int32(5), merged.Quantity)
	s.True(decimal.RequireFromString("500").Equal(merged.TotalPrice))

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 1)
	s.Equal(int64(5), cart.TotalItems)
	s.True(decimal.RequireFromString("500").Equal(cart.TotalPrice))
}

func (s *IntegrationTestSuite) TestAddToCart_MergedQuantityAboveStock() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "100.00", 4)

	_, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 3)
	s.Require().NoError(err)

	_, err = s.CartService.AddToCart(s.Ctx, user, product.ID, 2)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 1)
	s.Equal(int32(3), cart.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestAddToCart_HugeQuantityOnExistingLine() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "100.00", 5)

	_, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 1)
	s.Require().NoError(err)

	_, err = s.CartService.AddToCart(s.Ctx, user, product.ID, math.MaxInt32)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Not enough stock available")

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 1)
	s.Equal(int32(1), cart.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestAddToCart_Validation() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "100.00", 1)

	_, err := s.CartService.AddToCart(s.Ctx, user, 9999, 1)
	s.Require().ErrorIs(err, service.ErrNotFound)

	_, err = s.CartService.AddToCart(s.Ctx, user, product.ID, 0)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)

	_, err = s.CartService.AddToCart(s.Ctx, user, product.ID, 2)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Not enough stock available")
}

// Adding to the cart while the same user checks out must end in either a
// successful add or a business rejection, never a database error.
func (s *IntegrationTestSuite) TestAddToCart_ConcurrentWithCheckout() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 100)

	for range 10 {
		_, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 1)
		s.Require().NoError(err)

		var (
			wg       sync.WaitGroup
			addErr   error
			orderErr error
		)

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, addErr = s.CartService.AddToCart(s.Ctx, user, product.ID, 1)
		}()
		go func() {
			defer wg.Done()
			_, orderErr = s.OrderService.CreateOrder(s.Ctx, user, s.shipping())
		}()
		wg.Wait()

		s.Require().NoError(addErr)
		s.Require().NoError(orderErr)
		s.Require().NoError(s.CartService.ClearCart(s.Ctx, user))
	}
}

func (s *IntegrationTestSuite) TestUpdateCartItem_OverwritesQuantity() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	item, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 4)
	s.Require().NoError(err)

	updated, err := s.CartService.UpdateCartItem(s.Ctx, user, item.ID, 2)
	s.Require().NoError(err)
	s.Equal(item.ID, updated.ID)
	s.Equal(int32(2), updated.Quantity)
	s.True(decimal.RequireFromString("100.00").Equal(updated.TotalPrice))

	_, err = s.CartService.UpdateCartItem(s.Ctx, user, item.ID, 11)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)

	_, err = s.CartService.UpdateCartItem(s.Ctx, user, item.ID, 0)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
}

func (s *IntegrationTestSuite) TestCartItem_OwnershipChecks() {
	owner := s.seedUser(1, domain.RoleUser)
	stranger := s.seedUser(2, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	item, err := s.CartService.AddToCart(s.Ctx, owner, product.ID, 1)
	s.Require().NoError(err)

	_, err = s.CartService.UpdateCartItem(s.Ctx, stranger, item.ID, 2)
	s.Require().ErrorIs(err, service.ErrForbidden)
	s.EqualError(err, "You don't have permission to update this cart item")

	err = s.CartService.RemoveFromCart(s.Ctx, stranger, item.ID)
	s.Require().ErrorIs(err, service.ErrForbidden)
	s.EqualError(err, "You don't have permission to remove this cart item")

	_, err = s.CartService.UpdateCartItem(s.Ctx, owner, 9999, 2)
	s.Require().ErrorIs(err, service.ErrNotFound)
}

func (s *IntegrationTestSuite) TestCartItem_BoundItemIsFrozen() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	item, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 1)
	s.Require().NoError(err)

	_, err = s.OrderService.CreateOrder(s.Ctx, user, s.shipping())
	s.Require().NoError(err)

	_, err = s.CartService.UpdateCartItem(s.Ctx, user, item.ID, 2)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Cannot update item in completed order")

	err = s.CartService.RemoveFromCart(s.Ctx, user, item.ID)
	s.Require().ErrorIs(err, service.ErrInvalidRequest)
	s.EqualError(err, "Cannot remove item from completed order")

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Empty(cart.Items)
}

func (s *IntegrationTestSuite) TestRemoveFromCart() {
	user := s.seedUser(1, domain.RoleUser)
	first := s.seedProduct("Gel-Kayano", "50.00", 10)
	second := s.seedProduct("Novablast", "70.00", 10)

	item, err := s.CartService.AddToCart(s.Ctx, user, first.ID, 1)
	s.Require().NoError(err)
	_, err = s.CartService.AddToCart(s.Ctx, user, second.ID, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.CartService.RemoveFromCart(s.Ctx, user, item.ID))

	cart, err := s.CartService.GetCart(s.Ctx, user)
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 1)
	s.Equal(second.ID, cart.Items[0].ProductID)

	err = s.CartService.RemoveFromCart(s.Ctx, user, item.ID)
	s.Require().ErrorIs(err, service.ErrNotFound)
}

func (s *IntegrationTestSuite) TestClearCart_Idempotent() {
	user := s.seedUser(1, domain.RoleUser)
	product := s.seedProduct("Gel-Kayano", "50.00", 10)

	_, err := s.CartService.AddToCart(s.Ctx, user, product.ID, 3)
	s.Require().NoError(err)

	for range 2 {
		s.Require().NoError(s.CartService.ClearCart(s.Ctx, user))

		cart, err := s.CartService.GetCart(s.Ctx, user)
		s.Require().NoError(err)
		s.Empty(cart.Items)
		s.True(cart.TotalPrice.IsZero())
	}
}
