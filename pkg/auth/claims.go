package auth

import (
	"strings"

	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/types"
	"github.com/golang-jwt/jwt/v5"
)

// TokenPayload captures the data available when minting a session token.
type TokenPayload struct {
	UserID string
	Role   enums.Actor
}

// Claims are the session claims the storefront cares about.
type Claims struct {
	UserID types.ID    `json:"user_id"`
	Role   enums.Actor `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// User returns the user id, falling back to the registered sub claim.
func (c *Claims) User() string {
	if c == nil {
		return ""
	}
	if id := strings.TrimSpace(string(c.UserID)); id != "" {
		return id
	}
	return strings.TrimSpace(c.RegisteredClaims.Subject)
}
