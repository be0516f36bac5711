package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTP_Enroll(t *testing.T) {
	f := NewTOTP("gophvault", DefaultSkew)

	e, err := f.Enroll("alice")
	require.NoError(t, err)

	assert.Len(t, e.Secret, 32, "20 random bytes in unpadded base32")
	assert.True(t, strings.HasPrefix(e.URI, "otpauth://totp/"))
	assert.Contains(t, e.URI, "issuer=gophvault")
	assert.True(t, strings.HasPrefix(e.QRDataURL, "data:image/png;base64,"))

	other, err := f.Enroll("alice")
	require.NoError(t, err)
	assert.NotEqual(t, e.Secret, other.Secret)
}

func TestTOTP_VerifyWindow(t *testing.T) {
	f := NewTOTP("gophvault", DefaultSkew)
	e, err := f.Enroll("bob")
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 15, 0, time.UTC)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"current period", 0, true},
		{"one period back", -30 * time.Second, true},
		{"two periods ahead", 60 * time.Second, true},
		{"two periods back", -60 * time.Second, true},
		{"three periods ahead", 90 * time.Second, false},
		{"three periods back", -90 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := totp.GenerateCode(e.Secret, now.Add(tt.offset))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Verify(e.Secret, code, now))
		})
	}
}

func TestTOTP_VerifyRejectsGarbage(t *testing.T) {
	f := NewTOTP("gophvault", DefaultSkew)
	e, err := f.Enroll("carol")
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, f.Verify(e.Secret, "", now))
	assert.False(t, f.Verify("", "123456", now))
	assert.False(t, f.Verify(e.Secret, "12345", now))
	assert.False(t, f.Verify(e.Secret, "abcdef", now))
}
