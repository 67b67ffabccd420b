package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims represents the typed JWT issued by the auth provider.
// tid carries the tenant the token is scoped to; every authenticated
// request operates inside that tenant.
type AccessTokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tid"`
	Role     string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}
