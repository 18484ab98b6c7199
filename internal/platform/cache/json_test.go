package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCacheFetchAndBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewJSONCache(client, "test", time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []string{"culture", "faith"}, nil
	}

	var got []string
	require.NoError(t, c.Fetch(ctx, &got, loader, "categories"))
	require.NoError(t, c.Fetch(ctx, &got, loader, "categories"))
	assert.Equal(t, []string{"culture", "faith"}, got)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx))
	require.NoError(t, c.Fetch(ctx, &got, loader, "categories"))
	assert.Equal(t, 2, calls)
}

func TestJSONCacheWithoutRedis(t *testing.T) {
	c := NewJSONCache(nil, "test", time.Minute)
	var got int
	require.NoError(t, c.Fetch(context.Background(), &got, func(context.Context) (any, error) { return 7, nil }, "n"))
	assert.Equal(t, 7, got)

	err := c.Fetch(context.Background(), &got, func(context.Context) (any, error) { return nil, errors.New("boom") }, "n")
	assert.EqualError(t, err, "boom")
	assert.NoError(t, c.Bump(context.Background()))
}
