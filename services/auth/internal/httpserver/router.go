package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/sst_backend/pkg/metrics"
	loggingmw "github.com/Skotchmaster/sst_backend/pkg/middleware/logging"
	"github.com/Skotchmaster/sst_backend/pkg/middleware/ratelimit"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/audit"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const (
	permRolesManage = "roles.manage"
	permUsersManage = "users.manage"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Gate        *middleware.Gate
	Limiter     ratelimit.Limiter
	Metrics     *metrics.Registry
	Logger      *slog.Logger
	Ready       func(ctx context.Context) error
}

func clientIP(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := audit.WithClientIP(c.Request().Context(), c.RealIP())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(echomw.Recover())
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
	e.Use(loggingmw.RequestLogger(d.Logger))
	e.Use(clientIP)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})

	h := d.AuthHandler
	limit := func(scope string) []echo.MiddlewareFunc {
		if d.Limiter == nil {
			return nil
		}
		return []echo.MiddlewareFunc{ratelimit.Middleware(d.Limiter, scope)}
	}

	auth := e.Group("/auth")
	auth.POST("/login", h.Login, limit("login")...)
	auth.POST("/verify-otp", h.VerifyOTP, limit("verify_otp")...)
	auth.POST("/refresh", h.Refresh, limit("refresh")...)
	auth.POST("/logout", h.LogOut)

	authn := d.Gate.RequireAuth
	auth.GET("/me", h.Me, authn)
	auth.POST("/me/password", h.ChangePassword, authn)

	manageRoles := d.Gate.RequirePermissions(permRolesManage)
	auth.GET("/roles", h.ListRoles, manageRoles)
	auth.POST("/roles", h.CreateRole, manageRoles)
	auth.GET("/roles/:id", h.GetRole, manageRoles)
	auth.PUT("/roles/:id", h.UpdateRole, manageRoles)
	auth.POST("/roles/:id/permissions", h.AssignPermissions, manageRoles)
	auth.GET("/permissions", h.ListPermissions, manageRoles)
	auth.POST("/permissions", h.CreatePermission, manageRoles)

	auth.POST("/users/:id/roles", h.AssignUserRoles, d.Gate.RequirePermissions(permUsersManage))
}
