package utils

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecuteWithBreaker_ReturnsValue(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())

	res, err := ExecuteWithBreaker(cb, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, res)
}

func TestExecuteWithBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())
	failure := errors.New("broker down")

	for i := 0; i < 5; i++ {
		_, err := ExecuteWithBreaker(cb, func() (string, error) {
			return "", failure
		})
		require.ErrorIs(t, err, failure)
	}

	_, err := ExecuteWithBreaker(cb, func() (string, error) {
		return "unreachable", nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, gobreaker.StateOpen, cb.State())
}
