package users

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))

	assert.True(t, VerifyPassword("correct horse battery", hash))
	assert.False(t, VerifyPassword("correct horse", hash))

	other, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "соль должна быть случайной")
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, h := range []string{
		"",
		"plain-text",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	} {
		assert.False(t, VerifyPassword("anything", h), h)
	}
	assert.False(t, VerifyPassword("", dummyHash))
	assert.False(t, VerifyPassword("password", dummyHash))
}

func TestGenerateCode(t *testing.T) {
	six := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 20; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, six, code)
	}
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "*****6", MaskCode("123456"))
	assert.Equal(t, "*", MaskCode("1"))
	assert.Equal(t, "", MaskCode(""))
}

func TestOTPMessage(t *testing.T) {
	msg := otpMessage("no-reply@birdwatch.app", "user@example.com", "042042")
	assert.Contains(t, msg, "To: user@example.com\r\n")
	assert.Contains(t, msg, "Your verification code is 042042.")
	assert.Contains(t, msg, "\r\n\r\n")
}

func TestNewMailerWithoutHostLogsOnly(t *testing.T) {
	assert.IsType(t, LogMailer{}, NewMailer(SMTPConfig{}))
	assert.IsType(t, &SMTPMailer{}, NewMailer(SMTPConfig{Host: "smtp.example.com", Port: 587}))
}
