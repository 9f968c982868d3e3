package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const menuKeyPrefix = "menu:list:"

// Client caches rendered menu pages in Redis. A nil Client disables caching,
// so handlers work unchanged in tests and minimal deployments.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(redisURL string, ttl time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func menuKey(page, size int) string {
	return fmt.Sprintf("%s%d:%d", menuKeyPrefix, page, size)
}

// GetMenuPage loads a cached menu page into dest. The bool reports a hit.
func (c *Client) GetMenuPage(ctx context.Context, page, size int, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}

	val, err := c.rdb.Get(ctx, menuKey(page, size)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get menu page: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal menu page: %w", err)
	}
	return true, nil
}

func (c *Client) SetMenuPage(ctx context.Context, page, size int, value interface{}) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal menu page: %w", err)
	}
	return c.rdb.Set(ctx, menuKey(page, size), data, c.ttl).Err()
}

// InvalidateMenu drops every cached menu page. Called after any admin menu
// mutation; the keyspace stays small so KEYS is fine here.
func (c *Client) InvalidateMenu(ctx context.Context) error {
	if c == nil {
		return nil
	}

	keys, err := c.rdb.Keys(ctx, menuKeyPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to list menu keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
