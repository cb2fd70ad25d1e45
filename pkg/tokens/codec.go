package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Codec struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Codec)

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{secret: secret, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue signs a copy of claims with type, iat and exp filled in.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("tokens: ttl must be positive")
	}
	now := c.now()
	exp := jwt.NewNumericDate(now.Add(ttl))
	iat := jwt.NewNumericDate(now)

	var toSign jwt.Claims
	switch cl := claims.(type) {
	case *AccessClaims:
		cp := *cl
		cp.Type = TypeAccess
		cp.ExpiresAt, cp.IssuedAt = exp, iat
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		toSign = &cp
	case *PendingClaims:
		cp := *cl
		cp.Type = TypePending
		cp.ExpiresAt, cp.IssuedAt = exp, iat
		toSign = &cp
	default:
		return "", time.Time{}, fmt.Errorf("tokens: unsupported claims %T", claims)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, toSign).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

// Verify never returns claims unless signature, expiry and type all check out.
func (c *Codec) Verify(token string, expected Type) (Claims, error) {
	var claims Claims
	switch expected {
	case TypeAccess:
		claims = &AccessClaims{}
	case TypePending:
		claims = &PendingClaims{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidToken, expected)
	}

	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, fmt.Errorf("%w: not valid", ErrInvalidToken)
	}
	if claims.declaredType() != expected {
		return nil, fmt.Errorf("%w: type mismatch", ErrInvalidToken)
	}
	return claims, nil
}

func (c *Codec) VerifyAccess(token string) (*AccessClaims, error) {
	claims, err := c.Verify(token, TypeAccess)
	if err != nil {
		return nil, err
	}
	return claims.(*AccessClaims), nil
}

func (c *Codec) VerifyPending(token string) (*PendingClaims, error) {
	claims, err := c.Verify(token, TypePending)
	if err != nil {
		return nil, err
	}
	return claims.(*PendingClaims), nil
}
