package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/myblog/utils"
)

// idleBucketTTL drops buckets of callers that went quiet.
const idleBucketTTL = 5 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// buckets is one token-bucket pool, keyed by caller.
type buckets struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	m         map[string]*bucket
	lastSweep time.Time
}

func newBuckets(perMinute int) *buckets {
	perMinute = max(perMinute, 1)
	return &buckets{
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: max(perMinute/2, 1),
		m:     map[string]*bucket{},
	}
}

// reserve takes a token for key, returning how long to wait when none is left.
func (b *buckets) reserve(key string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) > idleBucketTTL {
		for k, v := range b.m {
			if now.Sub(v.lastSeen) > idleBucketTTL {
				delete(b.m, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.m[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.limit, b.burst)}
		b.m[key] = bk
	}
	bk.lastSeen = now

	r := bk.lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// RateLimit applies perMinute requests per caller. Signed-in callers are keyed
// by user id so users behind one NAT do not share a bucket; others by IP.
// Each call creates an independent pool, so route groups do not drain each other.
func RateLimit(perMinute int) gin.HandlerFunc {
	pool := newBuckets(perMinute)
	return func(ctx *gin.Context) {
		key := "ip:" + ctx.ClientIP()
		if id := Identity(ctx); id.Authenticated() {
			key = "user:" + strconv.FormatUint(uint64(id.UserID), 10)
		}
		if ok, wait := pool.reserve(key, time.Now()); !ok {
			ctx.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
