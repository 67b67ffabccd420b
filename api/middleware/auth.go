package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	pkgauth "github.com/pipeflowhq/pipeflow-backend/pkg/auth"
	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// tenant scope. No request crosses a tenant boundary past this point.
func Auth(cfg config.AuthConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxTenantID, claims.TenantID.String())
			ctx = context.WithValue(ctx, ctxRole, claims.Role)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":   claims.UserID.String(),
					"tenant_id": claims.TenantID.String(),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
