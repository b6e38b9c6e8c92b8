package utils

import (
	"context"
	"sync"
	"time"
)

// expiringSet is a set of keys that lapse after a TTL. It lives in Redis when
// one is configured and in process memory otherwise.
type expiringSet struct {
	prefix string

	mu    sync.Mutex
	local map[string]time.Time
}

func newExpiringSet(prefix string) *expiringSet {
	return &expiringSet{prefix: prefix, local: map[string]time.Time{}}
}

func (s *expiringSet) add(key string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, s.prefix+key, "1", ttl).Err(); err != nil {
			Sugar.Warnf("redis set failed key=%s err=%v", s.prefix, err)
		}
		return
	}
	s.mu.Lock()
	s.sweepLocked()
	s.local[key] = time.Now().Add(ttl)
	s.mu.Unlock()
}

func (s *expiringSet) has(key string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, s.prefix+key).Result()
		if err != nil {
			Sugar.Warnf("redis exists failed key=%s err=%v", s.prefix, err)
			return false
		}
		return n > 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.local[key]
	return ok && time.Now().Before(exp)
}

// take removes key and reports whether it was present, so each key is honoured once.
func (s *expiringSet) take(key string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := rc.GetDel(ctx, s.prefix+key).Result()
		return err == nil && v != ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.local[key]
	delete(s.local, key)
	return ok && time.Now().Before(exp)
}

func (s *expiringSet) sweepLocked() {
	now := time.Now()
	for k, exp := range s.local {
		if now.After(exp) {
			delete(s.local, k)
		}
	}
}

var (
	revokedTokens = newExpiringSet("myblog:jwt:blacklist:")
	oauthStates   = newExpiringSet("myblog:oauth:state:")
)

// BlacklistToken revokes token until expiresAt, after which it fails validation anyway.
func BlacklistToken(token string, expiresAt time.Time) {
	revokedTokens.add(token, time.Until(expiresAt))
}

// IsTokenBlacklisted reports whether token was revoked by logout. Redis errors fail open.
func IsTokenBlacklisted(token string) bool {
	return revokedTokens.has(token)
}

// SaveState records an OAuth state value for the callback to check.
func SaveState(state string, ttl time.Duration) {
	oauthStates.add(state, ttl)
}

// ConsumeState checks and forgets state; a replayed callback fails.
func ConsumeState(state string) bool {
	return oauthStates.take(state)
}
