package ratelimit

import (
	"net/http"

	"github.com/Skotchmaster/sst_backend/pkg/logging"
	"github.com/labstack/echo/v4"
)

// Middleware denies with 429 once the client IP exhausts its allowance.
// Limiter errors let the request through.
func Middleware(l Limiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := scope + ":" + c.RealIP()

			ok, err := l.Allow(ctx, key)
			if err != nil {
				logging.FromContext(ctx).Warn("rate_limit_unavailable", "scope", scope, "error", err)
			}
			if !ok {
				logging.FromContext(ctx).Warn("rate_limited", "scope", scope, "remote_ip", c.RealIP())
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
