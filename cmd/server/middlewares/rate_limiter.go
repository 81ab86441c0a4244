package middlewares

import (
	"time"

	"infinitiflow/cmd/server/handlers/httperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ErrTooManyAuthAttempts is returned once an IP exhausts the auth route budget.
var ErrTooManyAuthAttempts = httperr.E{
	Status:  429,
	Message: "Too many authentication attempts from this IP, please try again later.",
}

// BuildRateLimiter returns an IP-keyed limiter allowing max requests per
// expiration window. It does nothing when max <= 0 so callers don't need to
// wrap it in an if-statement.
func BuildRateLimiter(max int, expiration time.Duration) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return httperr.Fail(ErrTooManyAuthAttempts)
		},
	})
}
