package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/handler"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/middleware"
)

type Handlers struct {
	Product *handler.ProductHandler
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
}

// RegisterRoutes mounts the API. auth resolves the caller; routes outside it
// are public.
func RegisterRoutes(app *fiber.App, h *Handlers, auth fiber.Handler) {
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)

	api := app.Group("/api")

	products := api.Group("/products")
	products.Get("", h.Product.List)
	products.Get("/:id", h.Product.FindByID)
	products.Post("", auth, requireAdmin, h.Product.Create)
	products.Patch("/:id", auth, requireAdmin, h.Product.Update)

	cart := api.Group("/cart", auth)
	cart.Get("", h.Cart.Get)
	cart.Post("", h.Cart.Add)
	cart.Delete("", h.Cart.Clear)
	cart.Put("/:itemId", h.Cart.Update)
	cart.Delete("/:itemId", h.Cart.Remove)

	orders := api.Group("/orders", auth)
	orders.Get("/statistics", requireAdmin, h.Order.Statistics)
	orders.Get("", h.Order.List)
	orders.Post("", h.Order.Create)
	orders.Get("/:id", h.Order.Get)
	orders.Put("/:id/status", requireAdmin, h.Order.UpdateStatus)
	orders.Put("/:id/tracking", requireAdmin, h.Order.UpdateTracking)
	orders.Put("/:id/shipped", requireAdmin, h.Order.MarkShipped)
	orders.Put("/:id/delivered", requireAdmin, h.Order.MarkDelivered)
}

