package jwttoken

import (
	"intellikyc/internal/platform/middleware"
)

// JWTServiceAdapter bridges the token service to the auth middleware's
// validator contract.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		InstitutionID: claims.InstitutionID,
		ClientID:      claims.ClientID,
	}, nil
}
