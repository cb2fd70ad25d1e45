package httpserver

import (
	"errors"
	"net/http"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/service"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
	"github.com/labstack/echo/v4"
)

// statusOf maps service failures to a status and the detail shown to the caller.
func statusOf(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, service.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, service.ErrUnauthorized.Error()
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusUnauthorized, service.ErrInvalidCode.Error()
	case errors.Is(err, service.ErrExpired):
		return http.StatusUnauthorized, service.ErrExpired.Error()
	case errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden, service.ErrAccountDisabled.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "insufficient permissions"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, service.ErrNotFound.Error()
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrNotificationFailure):
		return http.StatusInternalServerError, service.ErrNotificationFailure.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, detail := statusOf(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, transport.ErrorResponse{Detail: detail})
}

func badBody() error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
}
