package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

// TokenService mints and verifies signed bearer tokens. Tokens carry the user
// id as subject plus role and token-version snapshots; expiry defaults to one
// hour from issuance.
type TokenService struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with secret. An empty secret
// is a fatal misconfiguration; mint and verify both refuse to operate on it.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint issues a token for the user with a fresh jti.
func (ts *TokenService) Mint(user *models.User) (string, error) {
	if ts.secret == "" {
		return "", models.ErrServerMisconfigured
	}

	now := ts.now()
	claims := &models.TokenClaims{
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(ts.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates the signature and expiry and returns the claims. Failures
// are distinguishable: ErrTokenExpired, ErrTokenInvalid (malformed, bad
// signature, or missing subject), or ErrServerMisconfigured.
func (ts *TokenService) Verify(tokenString string) (*models.TokenClaims, error) {
	if ts.secret == "" {
		return nil, models.ErrServerMisconfigured
	}

	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ts.secret), nil
	}, jwt.WithTimeFunc(ts.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}

	// A token without a subject cannot be tied to a user
	if claims.Subject == "" {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}
