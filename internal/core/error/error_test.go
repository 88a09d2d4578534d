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

func TestError_MessageAndUnwrap(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := New(underlying, http.StatusBadGateway, RedisErrorMessage)

	assert.Equal(t, "redis operation failed: connection refused", err.Error())
	assert.True(t, errors.Is(err, underlying))
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	notFound := WrapRedis(redis.Nil)
	var e *Error
	require.ErrorAs(t, notFound, &e)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Equal(t, RedisNotFoundMessage, e.Message)

	other := WrapRedis(fmt.Errorf("timeout"))
	require.ErrorAs(t, other, &e)
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.Equal(t, RedisErrorMessage, e.Message)
}
