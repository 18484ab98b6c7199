package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// JSONCache stores JSON values under a namespace whose version is bumped to
// invalidate every key at once. A nil client disables caching.
type JSONCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	group     singleflight.Group
}

// NewJSONCache instantiates the cache helper.
func NewJSONCache(client *redis.Client, namespace string, ttl time.Duration) *JSONCache {
	return &JSONCache{client: client, namespace: namespace, ttl: ttl}
}

func (c *JSONCache) versionKey() string {
	return c.namespace + ":version"
}

// Version returns the namespace version, initialising it when missing.
func (c *JSONCache) Version(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, c.versionKey(), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, c.versionKey()).Int64()
	}
	return ver, err
}

// Key composes a versioned key from parts.
func (c *JSONCache) Key(ctx context.Context, parts ...string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d", c.namespace, strings.Join(parts, ":"), ver), nil
}

// Fetch loads key into dest, populating it with loader on a miss. Concurrent
// misses for the same key share one loader call. Redis failures fall back to
// the loader.
func (c *JSONCache) Fetch(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	key, err := c.Key(ctx, parts...)
	if err != nil {
		key = ""
	}
	if c.client != nil && key != "" {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
	}

	flightKey := key
	if flightKey == "" {
		flightKey = strings.Join(parts, ":")
	}
	raw, err, _ := c.group.Do(flightKey, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if c.client != nil && key != "" {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Bump invalidates every key in the namespace.
func (c *JSONCache) Bump(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey()).Err()
}
