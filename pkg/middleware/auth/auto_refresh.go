package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/Skotchmaster/sst_backend/pkg/authclient"
	"github.com/Skotchmaster/sst_backend/pkg/logging"
	"github.com/Skotchmaster/sst_backend/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	HeaderRefreshToken = "X-Refresh-Token"
	HeaderAccessToken  = "X-Access-Token"

	claimsKey = "claims"
)

type refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authclient.Session, error)
}

// AutoRefreshMiddleware guards downstream services. Access tokens are checked
// locally; an expired one is swapped for a new pair when the caller sends its
// refresh token in X-Refresh-Token.
type AutoRefreshMiddleware struct {
	Codec      *tokens.Codec
	AuthClient refresher
}

func NewAutoRefreshMiddleware(codec *tokens.Codec, authClient *authclient.Client) *AutoRefreshMiddleware {
	m := &AutoRefreshMiddleware{Codec: codec}
	if authClient != nil {
		m.AuthClient = authClient
	}
	return m
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

// RequireRoles passes when the token carries any of codes.
func (m *AutoRefreshMiddleware) RequireRoles(codes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
			for _, code := range codes {
				if slices.Contains(claims.Roles, code) {
					return nil
				}
			}
			return forbidden()
		})
	}
}

// RequirePermissions passes only when the token carries every one of codes.
func (m *AutoRefreshMiddleware) RequirePermissions(codes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
			for _, code := range codes {
				if !slices.Contains(claims.Permissions, code) {
					return forbidden()
				}
			}
			return nil
		})
	}
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("mw", "auto_refresh")

		access := bearerToken(c)
		if access == "" {
			return unauthorized()
		}

		claims, err := m.Codec.VerifyAccess(access)
		if err == nil {
			if validator != nil {
				if vErr := validator(claims); vErr != nil {
					return vErr
				}
			}
			setUserContext(c, claims)
			return next(c)
		}

		if !errors.Is(err, jwt.ErrTokenExpired) {
			return unauthorized()
		}

		refresh := c.Request().Header.Get(HeaderRefreshToken)
		if refresh == "" || m.AuthClient == nil {
			return unauthorized()
		}

		session, rErr := m.AuthClient.Refresh(c.Request().Context(), refresh)
		if rErr != nil {
			l.Warn("refresh_failed", "error", rErr)
			return unauthorized()
		}

		newClaims, pErr := m.Codec.VerifyAccess(session.Tokens.AccessToken)
		if pErr != nil {
			l.Error("refreshed_token_invalid", "error", pErr)
			return unauthorized()
		}

		c.Response().Header().Set(HeaderAccessToken, session.Tokens.AccessToken)
		c.Response().Header().Set(HeaderRefreshToken, session.Tokens.RefreshToken)

		if validator != nil {
			if vErr := validator(newClaims); vErr != nil {
				return vErr
			}
		}

		setUserContext(c, newClaims)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized() error {
	return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
}

func forbidden() error {
	return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	if id, err := claims.UserID(); err == nil {
		c.Set("user_id", id)
	}
	c.Set(claimsKey, claims)
}

func ClaimsFrom(c echo.Context) *tokens.AccessClaims {
	claims, _ := c.Get(claimsKey).(*tokens.AccessClaims)
	return claims
}
