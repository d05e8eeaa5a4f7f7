package pasetotoken

import "time"

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
	// TokenTypeCabinet is handed to customers so they can manage their own
	// bookings without an account session.
	TokenTypeCabinet TokenType = "cabinet"
)

// Claims is the app-facing token payload.
type Claims struct {
	Type TokenType

	UserID    int64
	Role      string
	SessionID string

	Issuer   string
	Audience string

	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	TokenID   string // jti
}

// GetUserID implements reqctx.AuthClaims.
func (c *Claims) GetUserID() int64 {
	return c.UserID
}

// GetRole implements reqctx.AuthClaims.
func (c *Claims) GetRole() string {
	return c.Role
}

func (c *Claims) GetTokenType() string {
	return string(c.Type)
}

// IsExpired implements reqctx.AuthClaims.
func (c *Claims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
