// Package jwttoken issues and validates the HS256 access tokens used by the
// chat gateway. Tokens carry the user ID and an optional scope list; the
// "admin" scope gates the rate-limit admin endpoints.
package jwttoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
	"cortex/pkg/requestcontext"
)

// ScopeAdmin grants access to the rate-limit admin endpoints.
const ScopeAdmin = "admin"

// AccessTokenClaims represents the JWT claims for access tokens.
type AccessTokenClaims struct {
	UserID string   `json:"user_id"`
	Scope  []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token carries the given scope.
func (c *AccessTokenClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scope, scope)
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

func New(signingKey, issuer string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
	}
}

// GenerateAccessToken issues a signed token for the given user.
func (s *Service) GenerateAccessToken(ctx context.Context, userID id.UserID, scopes []string) (string, error) {
	if userID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user ID cannot be empty")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID: userID.String(),
		Scope:  scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        hex.EncodeToString(b),
		},
	})

	return token.SignedString(s.signingKey)
}

// ValidateToken parses and validates a token, enforcing HS256 and expiry.
func (s *Service) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}
