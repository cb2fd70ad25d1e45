package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.RefreshToken != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid or expired token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":7,"email":"a@sst.local","roles":["leader"]},"tokens":{"access_token":"a2","refresh_token":"r2","token_type":"bearer","expires_in":1800}}`))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer a2":
			_, _ = w.Write([]byte(`{"user":{"id":7,"email":"a@sst.local","permissions":["training.view"]}}`))
		case "Bearer boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"internal server error"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Refresh(t *testing.T) {
	t.Parallel()

	c := NewClient(newAuthServer(t).URL + "/")
	s, err := c.Refresh(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "r2", s.Tokens.RefreshToken)
	assert.Equal(t, uint(7), s.User.ID)
	assert.Equal(t, []string{"leader"}, s.User.Roles)

	_, err = c.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_Me(t *testing.T) {
	t.Parallel()

	c := NewClient(newAuthServer(t).URL)
	u, err := c.Me(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "a@sst.local", u.Email)
	assert.Equal(t, []string{"training.view"}, u.Permissions)

	_, err = c.Me(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Me(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
