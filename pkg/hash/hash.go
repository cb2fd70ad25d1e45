package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("weak password")

const minPasswordLen = 8

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

// CheckPassword is false for a mismatch and for a stored hash bcrypt cannot parse.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Sha256Hex is only for high-entropy secrets (refresh tokens, short-lived OTPs), never passwords.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func ValidatePasswordPolicy(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordLen)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower {
		return fmt.Errorf("%w: must mix upper and lower case letters", ErrWeakPassword)
	}
	if !digit {
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	}
	return nil
}
