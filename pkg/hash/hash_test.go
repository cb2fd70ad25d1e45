package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_FreshSaltEachCall(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("12345678")
	require.NoError(t, err)
	h2, err := HashPassword("12345678")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NotContains(t, h1, "12345678")
	assert.True(t, CheckPassword(h1, "12345678"))
	assert.True(t, CheckPassword(h2, "12345678"))
	assert.False(t, CheckPassword(h1, "87654321"))
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	assert.False(t, CheckPassword("", "whatever"))
	assert.False(t, CheckPassword("not-a-bcrypt-hash", "whatever"))
	assert.False(t, CheckPassword("$2b$12$short", "whatever"))
}

func TestSha256Hex_Deterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Sha256Hex("123456"), Sha256Hex("123456"))
	assert.NotEqual(t, Sha256Hex("123456"), Sha256Hex("123457"))
	assert.Len(t, Sha256Hex("x"), 64)
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(""),
	)
}

func TestValidatePasswordPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{name: "too short", password: "Ab1"},
		{name: "no upper", password: "abcdefg1"},
		{name: "no lower", password: "ABCDEFG1"},
		{name: "no digit", password: "Abcdefgh"},
		{name: "valid", password: "Abcdefg1", ok: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidatePasswordPolicy(tt.password)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrWeakPassword)
		})
	}
}
