package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken issues a signed JWT scoped to a tenant.
func MintAccessToken(cfg config.AuthConfig, now time.Time, userID, tenantID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if tenantID == uuid.Nil {
		return "", fmt.Errorf("tenant id is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := AccessTokenClaims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates the JWT string and returns typed claims.
func ParseAccessToken(cfg config.AuthConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		jwt.WithIssuer(cfg.JWTIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt: %w", err)
	}
	if claims.TenantID == uuid.Nil {
		return nil, fmt.Errorf("token missing tenant claim")
	}
	return claims, nil
}
