package llmsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 15 * time.Minute

// Cache is an optional (provider, model, prompt-hash) -> completion
// cache. When a Redis URL is configured it backs onto go-redis;
// otherwise it falls back to an in-process map, guarded by a mutex
// since the Orchestrator may share one Service across worker tasks.
type Cache struct {
	provider, model string
	redis           *redis.Client
	mu              sync.Mutex
	local           map[string]string
}

// NewCache builds a Cache. redisURL may be empty, in which case the
// cache is purely in-process.
func NewCache(provider, model, redisURL string) *Cache {
	c := &Cache{provider: provider, model: model, local: map[string]string{}}
	if redisURL != "" {
		if opts, err := redis.ParseURL(redisURL); err == nil {
			c.redis = redis.NewClient(opts)
		}
	}
	return c
}

func (c *Cache) key(messages []Message) string {
	var sb strings.Builder
	sb.WriteString(c.provider)
	sb.WriteByte('|')
	sb.WriteString(c.model)
	sb.WriteByte('|')
	for _, m := range messages {
		sb.WriteString(string(m.Role))
		sb.WriteByte(':')
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return "glance:completion:" + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(ctx context.Context, messages []Message) (string, bool) {
	key := c.key(messages)
	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			return val, true
		}
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.local[key]
	return val, ok
}

func (c *Cache) Put(ctx context.Context, messages []Message, completion string) {
	key := c.key(messages)
	if c.redis != nil {
		c.redis.Set(ctx, key, completion, cacheTTL)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = completion
}
