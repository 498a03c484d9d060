package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache caches query embeddings in Redis so repeated questions skip the
// embedding call. Misses and Redis outages are silent: the cache only ever
// saves latency, it never fails a query.
type QueryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQueryCache creates a cache over the given Redis client.
func NewQueryCache(rdb *redis.Client, ttl time.Duration) *QueryCache {
	return &QueryCache{rdb: rdb, ttl: ttl}
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "qvec:" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for the query, or nil on miss or error.
func (c *QueryCache) Get(ctx context.Context, query string) []float32 {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := c.rdb.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil
	}
	return vec
}

// Set stores the vector for the query, best effort.
func (c *QueryCache) Set(ctx context.Context, query string, vec []float32) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, cacheKey(query), data, c.ttl)
}
