package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	dom "github.com/sheffmachine/todo-api/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "todo:"
	keySearch = keyPrefix + "search:"

	KeyAll       = "all"
	KeyCompleted = "completed"
	KeyPending   = "pending"
)

// SearchKey returns the list key for search query q.
func SearchKey(q string) string {
	return "search:" + normalizeQuery(q)
}

// TodoCache caches todo listings in Redis, one JSON array per list key.
type TodoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTodoCache returns a new TodoCache.
func NewTodoCache(rdb *redis.Client, ttl time.Duration) *TodoCache {
	return &TodoCache{rdb: rdb, ttl: ttl}
}

// GetList returns the cached list for key, or nil on a miss.
func (c *TodoCache) GetList(ctx context.Context, key string) ([]dom.Todo, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := []dom.Todo{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetList stores list under key.
func (c *TodoCache) SetList(ctx context.Context, key string, list []dom.Todo) error {
	if list == nil {
		list = []dom.Todo{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+key, b, c.ttl).Err()
}

// InvalidateAll removes every list and search key (cache invalidation on write).
func (c *TodoCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Del(ctx, keyPrefix+KeyAll, keyPrefix+KeyCompleted, keyPrefix+KeyPending).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, keySearch+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Ping checks the Redis connection.
func (c *TodoCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func normalizeQuery(q string) string {
	return strings.TrimSpace(strings.ToLower(q))
}
