package tokens

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypePending Type = "pending"
)

// Claims is implemented only by *AccessClaims and *PendingClaims.
type Claims interface {
	jwt.Claims
	TokenType() Type
	declaredType() Type
}

type AccessClaims struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Name        string   `json:"name"`
	Type        Type     `json:"type"`
	jwt.RegisteredClaims
}

func (*AccessClaims) TokenType() Type      { return TypeAccess }
func (c *AccessClaims) declaredType() Type { return c.Type }

func (c *AccessClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

// PendingClaims marks "credentials verified, OTP outstanding".
type PendingClaims struct {
	OTPID uint `json:"otp_id"`
	Type  Type `json:"type"`
	jwt.RegisteredClaims
}

func (*PendingClaims) TokenType() Type      { return TypePending }
func (c *PendingClaims) declaredType() Type { return c.Type }

func (c *PendingClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

func Subject(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func parseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return uint(id), nil
}
