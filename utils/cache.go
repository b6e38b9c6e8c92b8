package utils

import (
	"context"
	"encoding/json"
	"time"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
	// scanBatch bounds the keys fetched per SCAN round during invalidation.
	scanBatch = 500
)

// CacheGetJSON decodes the cached value at key into v. It reports false on a
// miss, a decode error or when no Redis is configured.
func CacheGetJSON(key string, v interface{}) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		Sugar.Debugf("cache decode failed key=%s err=%v", key, err)
		return false
	}
	return true
}

// CacheSetJSON stores v as JSON. A non-positive ttl uses one hour.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		Sugar.Warnf("cache encode failed key=%s err=%v", key, err)
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix unlinks every key starting with prefix.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*cacheOpTimeout)
	defer cancel()

	batch := make([]string, 0, scanBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := rc.Unlink(ctx, batch...).Err(); err != nil {
			Sugar.Warnf("cache invalidate failed prefix=%s err=%v", prefix, err)
		}
		batch = batch[:0]
	}
	it := rc.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for it.Next(ctx) {
		batch = append(batch, it.Val())
		if len(batch) == scanBatch {
			flush()
		}
	}
	flush()
	if err := it.Err(); err != nil {
		Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
	}
}
