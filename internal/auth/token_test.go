package auth

import (
	"testing"
	"time"

	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-signing-secret-0123456789"

func testUser() *models.User {
	return &models.User{
		ID:           "7b0c2f42-64fd-4a3e-9c81-07f8f1f2a111",
		Email:        "client@example.com",
		Role:         models.RoleUser,
		TokenVersion: 3,
	}
}

func TestTokenService_MintAndVerify(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	tokenString, err := ts.Mint(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := ts.Verify(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "7b0c2f42-64fd-4a3e-9c81-07f8f1f2a111", claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.NotEmpty(t, claims.ID, "every token carries a fresh jti")
}

func TestTokenService_UniqueJTI(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)
	user := testUser()

	first, err := ts.Mint(user)
	require.NoError(t, err)
	second, err := ts.Mint(user)
	require.NoError(t, err)

	firstClaims, err := ts.Verify(first)
	require.NoError(t, err)
	secondClaims, err := ts.Verify(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestTokenService_Expired(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	minted := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return minted }

	tokenString, err := ts.Mint(testUser())
	require.NoError(t, err)

	// Still valid just before expiry
	ts.now = func() time.Time { return minted.Add(59 * time.Minute) }
	_, err = ts.Verify(tokenString)
	require.NoError(t, err)

	ts.now = func() time.Time { return minted.Add(2 * time.Hour) }
	_, err = ts.Verify(tokenString)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenService_WrongSecret(t *testing.T) {
	mint := NewTokenService(testSecret, time.Hour)
	verify := NewTokenService("a-completely-different-secret-value", time.Hour)

	tokenString, err := mint.Mint(testUser())
	require.NoError(t, err)

	_, err = verify.Verify(tokenString)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenService_Malformed(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	for _, garbage := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		_, err := ts.Verify(garbage)
		assert.ErrorIs(t, err, models.ErrTokenInvalid, garbage)
	}
}

func TestTokenService_EmptySecret(t *testing.T) {
	ts := NewTokenService("", time.Hour)

	_, err := ts.Mint(testUser())
	assert.ErrorIs(t, err, models.ErrServerMisconfigured)

	_, err = ts.Verify("anything")
	assert.ErrorIs(t, err, models.ErrServerMisconfigured)
}
