package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// TriggerRateLimit throttles the job-trigger surface with a fixed window
// counter. A nil store or non-positive limit disables the limiter; the
// limiter fails open when the counter store errors.
func TriggerRateLimit(store windowLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			allowed, count, err := store.FixedWindowAllow(ctx, "jobs:trigger", int64(limit), window)
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "trigger rate limit check failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithField(ctx, "window_count", count)
					logg.Warn(logCtx, "trigger rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many trigger requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
