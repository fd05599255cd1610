package jwttoken

import (
	"cortex/pkg/middleware/auth"
)

// MiddlewareAdapter bridges the JWT service to the auth middleware's
// TokenValidator interface without leaking jwt claims types upward.
type MiddlewareAdapter struct {
	svc *Service
}

func NewMiddlewareAdapter(svc *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{svc: svc}
}

func (a *MiddlewareAdapter) Validate(tokenString string) (*auth.Claims, error) {
	claims, err := a.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{
		UserID: claims.UserID,
		Scopes: claims.Scope,
	}, nil
}
