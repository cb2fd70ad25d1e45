package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestCodec_AccessRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testSecret)
	in := &AccessClaims{
		Roles:            []string{"admin"},
		Permissions:      []string{"roles.manage", "training.view"},
		Name:             "Demo",
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(42)},
	}

	token, exp, err := codec.Issue(in, 30*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 2*time.Second)
	assert.Empty(t, in.Type, "Issue must not mutate its input")

	out, err := codec.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, in.Roles, out.Roles)
	assert.Equal(t, in.Permissions, out.Permissions)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, TypeAccess, out.Type)
	assert.NotEmpty(t, out.ID)

	uid, err := out.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, uid)
}

func TestCodec_PendingRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testSecret)
	token, _, err := codec.Issue(&PendingClaims{
		OTPID:            9,
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(3)},
	}, 5*time.Minute)
	require.NoError(t, err)

	claims, err := codec.Verify(token, TypePending)
	require.NoError(t, err)

	pending, ok := claims.(*PendingClaims)
	require.True(t, ok)
	assert.EqualValues(t, 9, pending.OTPID)
	assert.Equal(t, TypePending, pending.TokenType())
	uid, err := pending.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 3, uid)
}

func TestCodec_RejectsExpired(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	codec := NewCodec(testSecret, WithClock(clock.Now))

	token, _, err := codec.Issue(&PendingClaims{
		OTPID:            1,
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(1)},
	}, 5*time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(4 * time.Minute)
	_, err = codec.VerifyPending(token)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = codec.VerifyPending(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestCodec_TypeMismatch(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testSecret)
	pending, _, err := codec.Issue(&PendingClaims{
		OTPID:            1,
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(1)},
	}, time.Minute)
	require.NoError(t, err)
	access, _, err := codec.Issue(&AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(1)},
	}, time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(pending, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.Verify(access, TypePending)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.Verify(access, Type("refresh"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_RejectsTampering(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testSecret)
	token, _, err := codec.Issue(&AccessClaims{
		Roles:            []string{"collaborator"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(5)},
	}, time.Minute)
	require.NoError(t, err)

	other := NewCodec([]byte("another-secret"))
	_, err = other.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "x." + parts[2]
	_, err = codec.VerifyAccess(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.VerifyAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_RejectsUnsignedAndForeignAlg(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testSecret)
	claims := &AccessClaims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   Subject(1),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.VerifyAccess(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = codec.VerifyAccess(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_RequiresExpiry(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testSecret)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccessClaims{
		Type:             TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: Subject(1)},
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = codec.VerifyAccess(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_IssueRejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	_, _, err := NewCodec(testSecret).Issue(&PendingClaims{}, 0)
	assert.Error(t, err)
}
