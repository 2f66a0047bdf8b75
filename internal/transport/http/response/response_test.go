package response

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/shoe-shop/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.Error{Kind: service.ErrNotFound, Message: "missing"}, fiber.StatusNotFound},
		{&service.Error{Kind: service.ErrForbidden, Message: "not yours"}, fiber.StatusForbidden},
		{&service.Error{Kind: service.ErrInvalidRequest, Message: "bad"}, fiber.StatusBadRequest},
		{&service.Error{Kind: service.ErrUnauthorized, Message: "who"}, fiber.StatusUnauthorized},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), fiber.StatusGatewayTimeout},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}
