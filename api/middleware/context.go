package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-core/pkg/commerce"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxSession contextKey = "session"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// SessionFromContext returns the upstream session seeded by Auth.
func SessionFromContext(ctx context.Context) (commerce.Session, bool) {
	if ctx == nil {
		return commerce.Session{}, false
	}
	s, ok := ctx.Value(ctxSession).(commerce.Session)
	return s, ok
}

// WithSession injects the session, its user id and role into the context.
func WithSession(ctx context.Context, s commerce.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSession, s)
	ctx = context.WithValue(ctx, ctxUserID, s.UserID)
	return context.WithValue(ctx, ctxRole, string(s.Scope))
}
