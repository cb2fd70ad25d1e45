package tokens

import (
	nanoid "github.com/jaevor/go-nanoid"
)

const (
	refreshTokenLen = 64
	otpDigits       = 6
)

// NewRefreshToken returns 64 URL-safe symbols (384 bits) from crypto/rand.
func NewRefreshToken() (string, error) {
	gen, err := nanoid.Standard(refreshTokenLen)
	if err != nil {
		return "", err
	}
	return gen(), nil
}

// NewOTPCode returns a uniformly random 6-digit code; leading zeros are kept.
func NewOTPCode() (string, error) {
	gen, err := nanoid.CustomASCII("0123456789", otpDigits)
	if err != nil {
		return "", err
	}
	return gen(), nil
}
