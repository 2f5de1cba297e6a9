package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// Tokens are issued by the surrounding dashboard; this engine only verifies.
//
// Multi-tenant invariant: OrgID must be present on every access token.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
}
