package utils

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

const (
	FlashInfo  = "info"
	FlashError = "error"

	flashPrefix = "myblog:flash:"
	flashTTL    = 10 * time.Minute
	flashMax    = 20
)

// Flash is a one-shot message shown to a user after a mutation.
type Flash struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type flashQueue struct {
	items     []Flash
	expiresAt time.Time
}

var (
	flashes   = map[uint]*flashQueue{}
	flashesMu sync.Mutex
)

// PushFlash queues a message for userID. Delivery is best-effort.
func PushFlash(userID uint, kind, text string) {
	if userID == 0 || text == "" {
		return
	}
	f := Flash{Kind: kind, Text: text}
	if rc := GetRedis(); rc != nil {
		b, _ := json.Marshal(f)
		key := flashPrefix + strconv.FormatUint(uint64(userID), 10)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pipe := rc.TxPipeline()
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, -flashMax, -1)
		pipe.Expire(ctx, key, flashTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			Sugar.Warnf("flash push failed user=%d err=%v", userID, err)
		}
		return
	}
	flashesMu.Lock()
	defer flashesMu.Unlock()
	q := flashes[userID]
	if q == nil || time.Now().After(q.expiresAt) {
		q = &flashQueue{}
		flashes[userID] = q
	}
	q.items = append(q.items, f)
	if len(q.items) > flashMax {
		q.items = q.items[len(q.items)-flashMax:]
	}
	q.expiresAt = time.Now().Add(flashTTL)
}

// PopFlashes returns and clears the pending messages of userID, oldest first.
func PopFlashes(userID uint) []Flash {
	out := []Flash{}
	if rc := GetRedis(); rc != nil {
		key := flashPrefix + strconv.FormatUint(uint64(userID), 10)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pipe := rc.TxPipeline()
		rng := pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			Sugar.Warnf("flash pop failed user=%d err=%v", userID, err)
			return out
		}
		for _, raw := range rng.Val() {
			var f Flash
			if json.Unmarshal([]byte(raw), &f) == nil {
				out = append(out, f)
			}
		}
		return out
	}
	flashesMu.Lock()
	defer flashesMu.Unlock()
	q := flashes[userID]
	delete(flashes, userID)
	if q == nil || time.Now().After(q.expiresAt) {
		return out
	}
	return append(out, q.items...)
}
