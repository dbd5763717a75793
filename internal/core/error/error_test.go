package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	err := WrapRedis(redis.Nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.True(t, errors.Is(err, redis.Nil))

	err = WrapRedis(errors.New("connection refused"))
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Contains(t, err.Error(), RedisErrorMessage)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
	assert.Equal(t, http.StatusBadRequest, StatusOf(BadRequest(errors.New("empty query"))))

	wrapped := fmt.Errorf("lookup: %w", WrapDatabase(errors.New("no such table")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(wrapped))

	var appErr *AppError
	require.True(t, errors.As(WrapUpstream(errors.New("timeout")), &appErr))
	assert.Equal(t, UpstreamErrorMessage, appErr.Message)
}
