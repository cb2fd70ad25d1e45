package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/service"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthn map[string]*service.Principal

func (s stubAuthn) Authenticate(_ context.Context, token string) (*service.Principal, error) {
	p, ok := s[token]
	if !ok {
		return nil, service.ErrUnauthorized
	}
	return p, nil
}

func newGate() *Gate {
	return NewGate(stubAuthn{
		"collab": service.NewPrincipal(transport.UserProfile{ID: 1, Roles: []string{"collaborator"}, Permissions: []string{"training.view"}}),
		"admin":  service.NewPrincipal(transport.UserProfile{ID: 2, Roles: []string{"admin"}, Permissions: []string{"training.view", "roles.manage"}}),
	})
}

func run(t *testing.T, mw echo.MiddlewareFunc, authz string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	g := newGate()
	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing header", header: "", want: service.ErrUnauthorized},
		{name: "wrong scheme", header: "Basic collab", want: service.ErrUnauthorized},
		{name: "unknown token", header: "Bearer nope", want: service.ErrUnauthorized},
		{name: "valid", header: "Bearer collab", want: nil},
		{name: "scheme case-insensitive", header: "bearer collab", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := run(t, g.RequireAuth, tt.header)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, PrincipalFrom(c))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, PrincipalFrom(c))
			assert.Equal(t, uint(1), c.Get("user_id"))
		})
	}
}

func TestRequirePermissions(t *testing.T) {
	t.Parallel()

	g := newGate()
	mw := g.RequirePermissions("roles.manage")

	_, err := run(t, mw, "Bearer collab")
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = run(t, mw, "Bearer admin")
	assert.NoError(t, err)

	_, err = run(t, mw, "")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	g := newGate()
	mw := g.RequireRoles("admin", "superadmin")

	_, err := run(t, mw, "Bearer collab")
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = run(t, mw, "Bearer admin")
	assert.NoError(t, err)
}
