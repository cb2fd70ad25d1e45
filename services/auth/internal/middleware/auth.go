package middleware

import (
	"context"
	"strings"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/service"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*service.Principal, error)
}

// Gate resolves the bearer token on every request; role and permission checks
// run against the stored user, so grants and revocations apply immediately.
type Gate struct {
	authn authenticator
}

func NewGate(a authenticator) *Gate {
	return &Gate{authn: a}
}

func BearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (g *Gate) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := BearerToken(c)
		if token == "" {
			return service.ErrUnauthorized
		}
		p, err := g.authn.Authenticate(c.Request().Context(), token)
		if err != nil {
			return err
		}
		c.Set(principalKey, p)
		c.Set("user_id", p.UserID())
		return next(c)
	}
}

func (g *Gate) RequireRoles(codes ...string) echo.MiddlewareFunc {
	return g.check(func(p *service.Principal) error { return service.RequireRoles(p, codes...) })
}

func (g *Gate) RequirePermissions(codes ...string) echo.MiddlewareFunc {
	return g.check(func(p *service.Principal) error { return service.RequirePermissions(p, codes...) })
}

func (g *Gate) check(allow func(*service.Principal) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.RequireAuth(func(c echo.Context) error {
			if err := allow(PrincipalFrom(c)); err != nil {
				return err
			}
			return next(c)
		})
	}
}

func PrincipalFrom(c echo.Context) *service.Principal {
	p, _ := c.Get(principalKey).(*service.Principal)
	return p
}
