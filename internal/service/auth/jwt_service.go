package auth

import (
	"context"
	"time"
)

// JWTService issues and validates bearer tokens for API callers.
type JWTService interface {
	// GenerateToken creates a signed access token for subject.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims if the token is valid, or an error if validation
	// fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated contents of a token.
type Claims struct {
	// Subject identifies the caller the token was issued for.
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
