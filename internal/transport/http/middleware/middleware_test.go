package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/metrics"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/middleware"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/response"
	"github.com/sakashimaa/shoe-shop/pkg/auth"
	generalDomain "github.com/sakashimaa/shoe-shop/pkg/domain"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "test-secret"

type fakeUserService struct {
	users map[int64]*domain.User
}

func (f *fakeUserService) Resolve(_ context.Context, userID int64) (*domain.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, &service.Error{Kind: service.ErrUnauthorized, Message: "User not found"}
	}

	return user, nil
}

func (f *fakeUserService) HandleUserRegistered(_ context.Context, _ *generalDomain.UserRegisteredEvent) error {
	return nil
}

func newAuthApp() *fiber.App {
	users := &fakeUserService{users: map[int64]*domain.User{
		1: {ID: 1, Username: "ada", Role: domain.RoleUser},
		2: {ID: 2, Username: "root", Role: domain.RoleAdmin},
	}}

	app := fiber.New()
	authMiddleware := middleware.NewAuthMiddleware(users, secret, zap.NewNop())

	app.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		user, _ := response.User(c)
		return c.SendString(user.Username)
	})
	app.Get("/admin", authMiddleware, middleware.RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return app
}

func request(t *testing.T, app *fiber.App, target, authorization string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func bearer(t *testing.T, userID int64, role string) string {
	t.Helper()

	token, err := auth.GenerateAccessToken(userID, role, secret, time.Minute)
	require.NoError(t, err)

	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	app := newAuthApp()

	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", "").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", "Token abc").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", "Bearer not-a-jwt").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", bearer(t, 99, "USER")).StatusCode)
	assert.Equal(t, fiber.StatusOK, request(t, app, "/me", bearer(t, 1, "USER")).StatusCode)
}

func TestRequireRole(t *testing.T) {
	app := newAuthApp()

	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/admin", bearer(t, 1, "USER")).StatusCode)
	assert.Equal(t, fiber.StatusOK, request(t, app, "/admin", bearer(t, 2, "ADMIN")).StatusCode)
}

func TestRequireRole_UsesStoredRole(t *testing.T) {
	app := newAuthApp()

	// The token claims ADMIN but the stored user is a plain USER.
	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/admin", bearer(t, 1, "ADMIN")).StatusCode)
}

func TestRequestIDMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(mylogger.RequestID(c.UserContext()))
	})

	resp := request(t, app, "/", "")
	generated := resp.Header.Get(fiber.HeaderXRequestID)
	assert.NotEmpty(t, generated)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(fiber.HeaderXRequestID))
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewNop()

	app := fiber.New()
	app.Use(middleware.NewMetricsMiddleware(m))
	app.Get("/api/products/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	request(t, app, "/api/products/1", "")
	request(t, app, "/api/products/2", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/products/:id", "404")))
}
