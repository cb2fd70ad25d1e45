package tests

import (
	"context"
	"os"
	"regexp"
	"sync"
	"testing"

	"github.com/Skotchmaster/sst_backend/pkg/db"
	"github.com/Skotchmaster/sst_backend/pkg/tokens"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repo"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repotest"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type inbox struct {
	mu   sync.Mutex
	body string
}

func (i *inbox) Send(_ context.Context, _, _, body string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.body = body
	return nil
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

func (i *inbox) code() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return codeRe.FindString(i.body)
}

type integrationEnv struct {
	fx   *repotest.Fixture
	svc  *service.AuthService
	mail *inbox
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	dsn := os.Getenv("AUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTH_TEST_DATABASE_URL is required for tests")
	}

	ctx := context.Background()
	gdb, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(ctx, gdb))
	truncateTables(t, gdb)

	t.Cleanup(func() {
		truncateTables(t, gdb)
		_ = db.Close(gdb)
	})

	fx := repotest.Seed(t, gdb)
	mail := &inbox{}
	return &integrationEnv{
		fx:   fx,
		mail: mail,
		svc:  service.New(fx.Repo, tokens.NewCodec([]byte("test-jwt-secret")), mail, service.DefaultConfig()),
	}
}

func truncateTables(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	require.NoError(t, gdb.Exec(`TRUNCATE TABLE two_factor_codes, refresh_tokens, user_roles, role_permissions, users, roles, permissions RESTART IDENTITY CASCADE`).Error)
}

func uniqueEmail() string {
	return "u_" + uuid.NewString() + "@sst.local"
}

func TestAuthService_Login_Success_IssuesTokens(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	email := uniqueEmail()
	env.fx.User(t, email, false, "collaborator")

	res, err := env.svc.Login(ctx, email, repotest.DemoPassword)
	require.NoError(t, err)
	require.NotNil(t, res.Auth)
	assert.NotEmpty(t, res.Auth.Tokens.AccessToken)
	assert.NotEmpty(t, res.Auth.Tokens.RefreshToken)
	assert.Equal(t, []string{"collaborator"}, res.Auth.User.Roles)
}

func TestAuthService_TwoFactor_SingleUseCode(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	email := uniqueEmail()
	env.fx.User(t, email, true, "admin")

	res, err := env.svc.Login(ctx, email, repotest.DemoPassword)
	require.NoError(t, err)
	require.NotNil(t, res.Challenge)

	code := env.mail.code()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.VerifyOTP(ctx, res.Challenge.PendingToken, code); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAuthService_Refresh_Success_RotatesToken(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	email := uniqueEmail()
	env.fx.User(t, email, false, "leader")

	res, err := env.svc.Login(ctx, email, repotest.DemoPassword)
	require.NoError(t, err)
	first := res.Auth.Tokens.RefreshToken

	next, err := env.svc.RefreshSession(ctx, first)
	require.NoError(t, err)
	assert.NotEqual(t, first, next.Tokens.RefreshToken)

	_, err = env.svc.RefreshSession(ctx, first)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestAuthService_Refresh_ConcurrentSingleWinner(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	email := uniqueEmail()
	env.fx.User(t, email, false, "collaborator")

	res, err := env.svc.Login(ctx, email, repotest.DemoPassword)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.RefreshSession(ctx, res.Auth.Tokens.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAuthService_LogOut_RevokesRefreshToken(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	email := uniqueEmail()
	env.fx.User(t, email, false, "collaborator")

	res, err := env.svc.Login(ctx, email, repotest.DemoPassword)
	require.NoError(t, err)

	require.NoError(t, env.svc.LogOut(ctx, res.Auth.Tokens.RefreshToken))
	require.NoError(t, env.svc.LogOut(ctx, res.Auth.Tokens.RefreshToken))

	_, err = env.svc.RefreshSession(ctx, res.Auth.Tokens.RefreshToken)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}
