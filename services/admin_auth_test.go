package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/encorelab/encore-api/shared"
)

func newTestAuthService() *AdminAuthService {
	return &AdminAuthService{
		TokenDuration: 24 * time.Hour,
		jwtSecret:     "test-secret",
		password:      "correct horse battery staple",
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.IssueToken()
	require.NoError(t, err)
	assert.True(t, svc.VerifyToken(token))
}

func TestAdminTokenTampered(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.IssueToken()
	require.NoError(t, err)

	tampered := []byte(token)
	tampered[len(tampered)-1] ^= 0x01
	assert.False(t, svc.VerifyToken(string(tampered)))
}

func TestAdminTokenWrongSecret(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.IssueToken()
	require.NoError(t, err)

	other := newTestAuthService()
	other.jwtSecret = "different-secret"
	assert.False(t, other.VerifyToken(token))
}

func TestAdminTokenExpired(t *testing.T) {
	svc := newTestAuthService()
	svc.TokenDuration = -time.Minute

	token, err := svc.IssueToken()
	require.NoError(t, err)
	assert.False(t, svc.VerifyToken(token))
}

func TestAdminTokenGarbage(t *testing.T) {
	svc := newTestAuthService()

	assert.False(t, svc.VerifyToken(""))
	assert.False(t, svc.VerifyToken("not.a.token"))
}

func TestAdminLoginPlaintext(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.Login("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, svc.VerifyToken(token))

	_, err = svc.Login("wrong password")
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.StatusCode)

	_, err = svc.Login("")
	appErr, ok = shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.StatusCode)
}

func TestAdminLoginBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := newTestAuthService()
	svc.password = ""
	svc.passwordHash = string(hash)

	token, err := svc.Login("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, svc.VerifyToken(token))

	_, err = svc.Login("hunter2")
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.StatusCode)
}
