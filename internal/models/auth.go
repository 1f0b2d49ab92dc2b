package models

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies the caller's role. Accounts live in the platform's
// identity service; this engine only consumes the tokens it issues.
type UserRole string

// Roles recognised by the engine.
const (
	RoleAdmin UserRole = "ADMIN"
	RoleTutor UserRole = "TUTOR"
)

// JWTClaims is the token payload attached to authenticated requests.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
