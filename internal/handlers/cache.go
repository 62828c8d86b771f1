package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"code2diagram/internal/diagram"
	u "code2diagram/internal/utils"
)

const diagramCachePrefix = "diagramcache:"

// DiagramCache stores generated Mermaid text in Redis. Rendered artifacts are
// never cached. A nil *DiagramCache is a disabled cache.
type DiagramCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDiagramCache(rdb *redis.Client, ttl time.Duration) *DiagramCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DiagramCache{rdb: rdb, ttl: ttl}
}

// diagramCacheKey hashes everything that shapes the prompt.
func diagramCacheKey(req diagram.Request) string {
	h := sha256.New()
	h.Write([]byte(req.Language))
	h.Write([]byte{0})
	h.Write([]byte(req.Kind))
	h.Write([]byte{0})
	h.Write([]byte(req.Code))
	return diagramCachePrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached diagram. Redis failures count as a miss.
func (dc *DiagramCache) Get(ctx context.Context, req diagram.Request) (string, bool) {
	if dc == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	v, err := dc.rdb.Get(ctx, diagramCacheKey(req)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return "", false
	}
	return v, true
}

func (dc *DiagramCache) Set(ctx context.Context, req diagram.Request, mermaid string) {
	if dc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := dc.rdb.Set(ctx, diagramCacheKey(req), mermaid, dc.ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
