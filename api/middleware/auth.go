package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-core/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-core/pkg/auth"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
)

// Auth reads the caller's backend token, validates its claims and seeds the
// request context with the upstream session. Tokens without a role claim
// take defaultScope.
func Auth(cfg config.JWTConfig, defaultScope enums.Actor, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseToken(cfg, token, time.Now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			scope := claims.Role
			if scope == "" {
				scope = defaultScope
			}
			session := commerce.Session{Token: token, UserID: claims.User(), Scope: scope}

			ctx := WithSession(r.Context(), session)
			if logg != nil {
				ctx = logg.WithUserID(ctx, session.UserID)
				ctx = logg.WithActorRole(ctx, string(scope))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearer accepts the backend's Token header or an Authorization bearer.
func bearer(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(commerce.TokenHeader)); token != "" {
		return token
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
