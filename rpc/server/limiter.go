package server

import (
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 1024
	limiterTTL       = time.Hour
)

// hostRateLimiter hands out one token bucket per remote host, so a client can't
// bypass the limit by opening more connections. The least recently seen hosts are evicted.
type hostRateLimiter struct {
	cache gcache.Cache
	mu    sync.Mutex
	r     rate.Limit
	b     int
}

func newHostRateLimiter(r float64, b int) *hostRateLimiter {
	return &hostRateLimiter{
		cache: gcache.New(limiterCacheSize).LRU().Build(),
		r:     rate.Limit(r),
		b:     max(1, b),
	}
}

// get returns the limiter of host. A nil hostRateLimiter returns nil (no limit).
func (l *hostRateLimiter) get(host string) *rate.Limiter {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v, err := l.cache.Get(host); err == nil {
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.r, l.b)
	if err := l.cache.SetWithExpire(host, limiter, limiterTTL); err != nil {
		Logger.Warningf("Failed to cache rate limiter for %s: %v", host, err)
	}
	return limiter
}
