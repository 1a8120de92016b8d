package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeSession TokenType = "session"

// Claims is the session token issued by this service after an identity
// provider sign-in. Role is the stored user role, not a provider claim.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

// Identity is what the identity provider verified about the caller.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	// Admin reflects an `admin` custom claim set on the provider account.
	Admin bool
}
