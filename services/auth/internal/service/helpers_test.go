package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/sst_backend/pkg/metrics"
	"github.com/Skotchmaster/sst_backend/pkg/tokens"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/audit"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repotest"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mail struct {
	to, subject, body string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []mail
	err  error
}

func (n *captureNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, mail{to: recipient, subject: subject, body: body})
	return nil
}

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

func (n *captureNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no mail sent")
	m := otpPattern.FindStringSubmatch(n.sent[len(n.sent)-1].body)
	require.Len(t, m, 2)
	return m[1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingSink) Record(_ context.Context, ev audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type+":"+ev.Outcome)
	}
	return out
}

type env struct {
	svc   *AuthService
	fx    *repotest.Fixture
	mail  *captureNotifier
	clock *testClock
	sink  *recordingSink
	reg   *metrics.Registry
}

func newEnv(t *testing.T, mutate ...func(*Config)) *env {
	t.Helper()

	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	fx := repotest.Seed(t, repotest.NewDB(t))
	mail := &captureNotifier{}
	sink := &recordingSink{}
	reg := metrics.New()

	codec := tokens.NewCodec([]byte("test-secret"), tokens.WithClock(clock.Now))
	svc := New(fx.Repo, codec, mail, cfg,
		WithClock(clock.Now),
		WithAudit(sink),
		WithMetrics(reg),
	)
	return &env{svc: svc, fx: fx, mail: mail, clock: clock, sink: sink, reg: reg}
}

// login runs the full flow for a two-factor user and returns the auth response.
func (e *env) login(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	ctx := context.Background()

	res, err := e.svc.Login(ctx, email, repotest.DemoPassword)
	require.NoError(t, err)
	if res.Auth != nil {
		return res.Auth.Tokens.AccessToken, res.Auth.Tokens.RefreshToken
	}
	resp, err := e.svc.VerifyOTP(ctx, res.Challenge.PendingToken, e.mail.lastCode(t))
	require.NoError(t, err)
	return resp.Tokens.AccessToken, resp.Tokens.RefreshToken
}
