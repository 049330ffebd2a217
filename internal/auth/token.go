package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/ilondustries/inventario/internal/domain"
)

// TokenManager validates bearer tokens issued by the access-control
// collaborator and extracts the caller identity from them. GenerateToken
// exists for tooling and tests; this service never mints tokens for callers.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the JWT payload carrying the caller identity.
type Claims struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the given actor.
func (tm *TokenManager) GenerateToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name: actor.Name,
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseToken validates the token and returns the actor it identifies.
func (tm *TokenManager) ParseToken(tokenStr string) (*domain.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, errors.New("token missing identity claims")
	}
	return &domain.Actor{
		ID:   claims.Subject,
		Name: claims.Name,
		Role: claims.Role,
	}, nil
}
