package service

import (
	"errors"
	"fmt"
	"time"

	"backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned for malformed tokens or bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when the token is past its expiry.
	ErrTokenExpired = errors.New("token has expired")
)

// TokenManager issues and verifies access and refresh tokens. Both token
// classes carry the same claim shape and are signed with the same secret;
// they differ only in lifetime.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccessToken signs the claim set with the access-token lifetime.
func (m *TokenManager) IssueAccessToken(claims *models.Claims) (string, error) {
	return m.issue(claims, m.accessTTL)
}

// IssueRefreshToken signs the claim set with the refresh-token lifetime.
func (m *TokenManager) IssueRefreshToken(claims *models.Claims) (string, error) {
	return m.issue(claims, m.refreshTTL)
}

func (m *TokenManager) issue(claims *models.Claims, ttl time.Duration) (string, error) {
	now := time.Now()

	// Copy so temporal claims never leak back into the caller's value.
	signed := *claims
	signed.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &signed)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify parses and validates a token, returning the embedded claim set.
// Expired tokens yield ErrTokenExpired, anything else invalid yields
// ErrTokenInvalid; callers treat both as unauthenticated and may only
// distinguish them for logging.
func (m *TokenManager) Verify(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
