package database

import (
	"context"
	"testing"
	"time"

	"delivery-estimator/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_Bytes(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.GetBytes(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBytes(ctx, "k", []byte{0x00, 0x01, 0xff}, time.Minute))
	val, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x01, 0xff}, val)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBytes(ctx, "gone", []byte("x"), 0))
	require.NoError(t, c.Del(ctx, "gone"))
	assert.False(t, mr.Exists("gone"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, config.RedisConfig{Address: addr})
	assert.Error(t, err)
}
