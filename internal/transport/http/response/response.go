package response

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"go.uber.org/zap"
)

const userLocalsKey = "user"

type ErrorResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Path      string            `json:"path"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Path(),
	})
}

// ValidationError reports per-field messages under a 400.
func ValidationError(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Timestamp: time.Now(),
		Status:    fiber.StatusBadRequest,
		Error:     http.StatusText(fiber.StatusBadRequest),
		Message:   "Validation failed",
		Path:      c.Path(),
		Fields:    fields,
	})
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError writes err as an ErrorResponse. Unclassified errors are logged
// and hidden behind a generic message.
func FromError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := StatusOf(err)

	var svcErr *service.Error
	switch {
	case errors.As(err, &svcErr):
		mylogger.Warn(
			c.UserContext(),
			logger,
			"request rejected",
			zap.String("path", c.Path()),
			zap.Int("http_status", status),
			zap.String("message", svcErr.Message),
		)

		return Error(c, status, svcErr.Message)
	case status == fiber.StatusGatewayTimeout:
		mylogger.Warn(c.UserContext(), logger, "request timed out", zap.String("path", c.Path()))
		return Error(c, status, "request timed out")
	default:
		mylogger.Error(
			c.UserContext(),
			logger,
			"request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return Error(c, fiber.StatusInternalServerError, "internal error")
	}
}

func SetUser(c *fiber.Ctx, user *domain.User) {
	c.Locals(userLocalsKey, user)
}

func User(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(userLocalsKey).(*domain.User)
	return user, ok && user != nil
}
