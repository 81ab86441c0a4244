package middlewares

import (
	"strconv"
	"sync"
	"time"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// rateLog holds the times of a caller's accepted requests, oldest first.
// It never grows past max.
type rateLog struct {
	hits []time.Time
}

// prune drops hits that fell out of the window ending at now.
func (r *rateLog) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(r.hits) && r.hits[i].Before(cutoff) {
		i++
	}
	r.hits = r.hits[i:]
}

// UserRateLimiter counts requests per caller over a sliding window. Callers
// are keyed by user id, or by IP when anonymous. The cache is bounded and an
// entry expires one window after its latest accepted request.
type UserRateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	logs *expirable.LRU[string, *rateLog]
}

// NewUserRateLimiter allows max requests per window for up to size callers.
func NewUserRateLimiter(max int, window time.Duration, size int) *UserRateLimiter {
	return &UserRateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		logs:   expirable.NewLRU[string, *rateLog](size, nil, window),
	}
}

// Allow counts one request for key and reports whether it is within the limit.
// resetAt is when the oldest counted request leaves the window.
func (l *UserRateLimiter) Allow(key string) (remaining int, resetAt time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	r, found := l.logs.Get(key)
	if !found {
		r = &rateLog{}
	}
	r.prune(now, l.window)

	if len(r.hits) >= l.max {
		return 0, r.hits[0].Add(l.window), false
	}

	r.hits = append(r.hits, now)
	// re-adding refreshes the entry's TTL
	l.logs.Add(key, r)
	return l.max - len(r.hits), r.hits[0].Add(l.window), true
}

// Handler enforces the limit and sets the X-RateLimit-* headers.
func (l *UserRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if user, ok := c.Locals(ctxkeys.UserKey).(*auth.User); ok && user != nil {
			key = "user:" + user.ID.Hex()
		}

		remaining, resetAt, ok := l.Allow(key)
		c.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retry := int(resetAt.Sub(l.now()).Seconds()) + 1
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return httperr.Fail(httperr.ErrTooManyRequests)
		}
		return c.Next()
	}
}
