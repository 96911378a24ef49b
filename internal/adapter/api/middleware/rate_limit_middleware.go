package middleware

import (
	"fmt"
	"math"

	"github.com/labstack/echo/v4"

	"campuslink/internal/usecase"
	"campuslink/pkg/errors"
	"campuslink/pkg/logger"
	"campuslink/pkg/response"
)

// RateLimit spends one token of action per request. Authenticated callers are
// keyed by user id, anonymous ones by client IP. A nil limiter lets
// everything through.
func RateLimit(limiter usecase.Limiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if identity, ok := IdentityFrom(c); ok {
				key = identity.UserID
			}

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				logger.Warnw("rate limited", "key", key, "action", action, "retryAfter", wait)
				retryAfter := int(math.Ceil(wait.Seconds()))
				c.Response().Header().Set("Retry-After", fmt.Sprint(retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", wait))
			}
			return next(c)
		}
	}
}
