package commerce

import (
	"strings"

	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

// Session is the caller's credential forwarded to the backend. Customer and
// agent sessions use separate tokens and never share a Client.
type Session struct {
	Token  string
	UserID string
	Scope  enums.Actor
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session token required")
	}
	return nil
}

// Key identifies the session owner for per-user state such as the coupon slot.
func (s Session) Key() string {
	if s.UserID != "" {
		return s.UserID
	}
	return "anon"
}
