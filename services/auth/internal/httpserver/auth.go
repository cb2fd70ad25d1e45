package httpserver

import (
	"net/http"
	"strings"

	"github.com/Skotchmaster/sst_backend/pkg/logging"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/middleware"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/service"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return badBody()
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	if res.Challenge != nil {
		return c.JSON(http.StatusOK, res.Challenge)
	}
	return c.JSON(http.StatusOK, res.Auth)
}

func (h *AuthHTTP) VerifyOTP(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		logging.FromContext(ctx).Warn("verify_otp_error", "status", 400, "error", err)
		return badBody()
	}
	if req.PendingToken == "" || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "pending_token and code are required")
	}

	resp, err := h.Svc.VerifyOTP(ctx, req.PendingToken, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		logging.FromContext(ctx).Warn("refresh_error", "status", 400, "error", err)
		return badBody()
	}

	resp, err := h.Svc.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("logout_error", "status", 400, "error", err)
		return badBody()
	}
	if err := h.Svc.LogOut(ctx, req.RefreshToken); err != nil {
		return err
	}

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return service.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, transport.MeResponse{User: p.Profile})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return service.ErrUnauthorized
	}

	var req transport.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		logging.FromContext(ctx).Warn("change_password_error", "status", 400, "error", err)
		return badBody()
	}
	if err := h.Svc.ChangePassword(ctx, p.UserID(), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
