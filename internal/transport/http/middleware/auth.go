package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/response"
	"github.com/sakashimaa/shoe-shop/pkg/auth"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"go.uber.org/zap"
)

func NewAuthMiddleware(users service.UserService, secret string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: Invalid header format")
		}

		claims, err := auth.ValidateToken(parts[1], secret)
		if err != nil {
			mylogger.Warn(c.UserContext(), logger, "token validation failed", zap.Error(err))
			return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: Invalid token")
		}

		user, err := users.Resolve(c.UserContext(), claims.UserID)
		if err != nil {
			return response.FromError(c, logger, err)
		}

		response.SetUser(c, user)
		return c.Next()
	}
}

// RequireRole must run after NewAuthMiddleware.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := response.User(c)
		if !ok {
			return response.Error(c, fiber.StatusUnauthorized, "Unauthorized: missed user")
		}

		if user.Role != role {
			return response.Error(c, fiber.StatusForbidden, "Access denied")
		}

		return c.Next()
	}
}
