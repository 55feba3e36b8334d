package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter throttles case creation per actor. It wraps an in-memory
// windowed counter: state is process-local and resets on restart, there is no
// distributed coordination. Created once in App.Initialize and injected into
// the case handler so the backend can be swapped without touching call sites.
type RateLimiter struct {
	instance *limiter.Limiter
}

// NewRateLimiter builds a limiter allowing limit events per period
func NewRateLimiter(limit int64, period time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 3
	}
	if period <= 0 {
		period = time.Minute
	}
	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	return &RateLimiter{instance: limiter.New(memory.NewStore(), rate)}
}

// Allow records an attempt for the key and reports whether the limit was
// reached. The store update is atomic per key, so concurrent attempts never
// admit more than the configured limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (limiter.Context, error) {
	return rl.instance.Get(ctx, key)
}

// SetRateLimitHeaders writes the standard X-RateLimit headers for a limiter result
func SetRateLimitHeaders(w http.ResponseWriter, lctx limiter.Context) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", lctx.Reset))
}

// RateLimitKey keys the limiter by actor identity, falling back to the
// network origin when the request is unauthenticated
func RateLimitKey(r *http.Request) string {
	if actor, ok := Actor(r); ok && actor.ID != "" {
		return actor.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
