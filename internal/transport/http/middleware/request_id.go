package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
)

// NewRequestIDMiddleware reuses an incoming X-Request-ID or mints one, echoes
// it back and puts it on the request context for the logger.
func NewRequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(fiber.HeaderXRequestID, id)
		c.SetUserContext(mylogger.WithRequestID(c.UserContext(), id))

		return c.Next()
	}
}
